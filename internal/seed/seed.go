// Package seed inserts a fixed set of sample users into an empty database.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/userapi/userapi/internal/model"
	"github.com/userapi/userapi/internal/service"
)

// SampleUser describes one seeded account.
type SampleUser struct {
	Username  string
	FirstName string
	LastName  string
	Active    bool
}

// Email derives the sample address, e.g. john.doe@example.com.
func (s SampleUser) Email() string {
	return fmt.Sprintf("%s.%s@example.com", strings.ToLower(s.FirstName), strings.ToLower(s.LastName))
}

// SampleUsers is the data set created by Run.
var SampleUsers = []SampleUser{
	{Username: "john_doe", FirstName: "John", LastName: "Doe", Active: true},
	{Username: "jane_smith", FirstName: "Jane", LastName: "Smith", Active: true},
	{Username: "bob_wilson", FirstName: "Bob", LastName: "Wilson", Active: true},
	{Username: "alice_brown", FirstName: "Alice", LastName: "Brown", Active: true},
	{Username: "charlie_davis", FirstName: "Charlie", LastName: "Davis", Active: false},
}

// Result summarises a seeding run.
type Result struct {
	Skipped     bool
	Created     int
	TotalUsers  int64
	ActiveUsers int
}

// Run creates SampleUsers through svc when no user exists yet. Inactive
// samples are created and then deactivated, so every write goes through the
// same rules the API applies.
func Run(ctx context.Context, svc *service.UserService, logger *slog.Logger) (Result, error) {
	count, err := svc.GetUserCount(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		logger.Info("sample data skipped", "existing_users", count)
		return Result{Skipped: true, TotalUsers: count}, nil
	}

	var res Result
	created := make([]*model.User, 0, len(SampleUsers))
	for _, sample := range SampleUsers {
		user, err := svc.CreateUser(ctx, service.CreateUserInput{
			Username:  sample.Username,
			Email:     sample.Email(),
			FirstName: sample.FirstName,
			LastName:  sample.LastName,
		})
		if err != nil {
			return res, fmt.Errorf("create %s: %w", sample.Username, err)
		}
		res.Created++
		created = append(created, user)
		logger.Debug("sample user created", "user_id", user.ID, "full_name", user.FullName())
	}

	for i, sample := range SampleUsers {
		if sample.Active {
			continue
		}
		if err := svc.DeactivateUser(ctx, created[i].ID); err != nil {
			return res, fmt.Errorf("deactivate %s: %w", sample.Username, err)
		}
	}

	if res.TotalUsers, err = svc.GetUserCount(ctx); err != nil {
		return res, fmt.Errorf("count users: %w", err)
	}
	active, err := svc.GetActiveUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("list active users: %w", err)
	}
	res.ActiveUsers = len(active)

	logger.Info("sample data initialized",
		"created", res.Created,
		"total_users", res.TotalUsers,
		"active_users", res.ActiveUsers,
	)

	return res, nil
}
