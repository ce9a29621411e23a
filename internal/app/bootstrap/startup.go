// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/luminacoaching/lumina/internal/app/system/timeouts"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts configured from environment", zap.Int("overrides", n))
	}

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, logger); err != nil {
			return err
		}
	}
	return nil
}

// ensureAdmin guarantees an active admin account exists for the given email.
// An existing user is promoted and re-activated; a missing one is created.
// Runs on every startup and is idempotent.
func ensureAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	users := deps.LuminaMongoDatabase.Collection("users")
	emailCI := text.Fold(email)

	var existing models.User
	err := users.FindOne(ctx, bson.M{"email_ci": emailCI}).Decode(&existing)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin && existing.Status == "active" {
			return nil
		}
		_, err = users.UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{
			"role":       models.RoleAdmin,
			"status":     "active",
			"updated_at": time.Now().UTC(),
		}})
		if err != nil {
			return fmt.Errorf("promote admin %s: %w", email, err)
		}
		logger.Info("promoted existing user to admin", zap.String("email", email))
		return nil

	case err == mongo.ErrNoDocuments:
		now := time.Now().UTC()
		_, err = users.InsertOne(ctx, models.User{
			ID:         primitive.NewObjectID(),
			FullName:   "Administrator",
			FullNameCI: text.Fold("Administrator"),
			Email:      email,
			EmailCI:    emailCI,
			Role:       models.RoleAdmin,
			Status:     "active",
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("create admin %s: %w", email, err)
		}
		logger.Info("created bootstrap admin", zap.String("email", email))
		return nil

	default:
		return fmt.Errorf("lookup admin %s: %w", email, err)
	}
}
