package docstore

import (
	"context"
	"fmt"

	"github.com/lunaugust/plantracker/internal/auth"
	"github.com/lunaugust/plantracker/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

func (s *Store) GetUserByUsername(ctx context.Context, username string) (_ *auth.User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.users.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("username", username))

	rows, err := s.db.Query(
		ctx,
		`SELECT id, username, password_hash FROM account WHERE username = $1;`,
		username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, auth.ErrUserNotFound
	}

	var user auth.User
	if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}
	return &user, nil
}
