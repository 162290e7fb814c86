package users

import (
	"context"

	"go.uber.org/zap"

	"github.com/user/users-service/apperror"
)

// SeedUsers are the sample accounts inserted by the `seed-db` command.
var SeedUsers = []CreateUserRequest{
	{Username: "dash", Email: "dash.stander@gmail.com"},
	{Username: "lily", Email: "lily.stander@gmail.com"},
	{Username: "matthew", Email: "matt.wilenchik@gmail.com"},
}

// Seed creates SeedUsers with the given password and returns how many were inserted.
// Users that already exist are skipped, so seeding twice is harmless.
func Seed(ctx context.Context, service *UserService, password string, logger *zap.Logger) (int, error) {
	created := 0
	for _, u := range SeedUsers {
		u.Password = password
		if _, err := service.CreateUser(ctx, u); err != nil {
			if apperror.IsConflictError(err) {
				logger.Info("seed user already present", zap.String("username", u.Username))
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
