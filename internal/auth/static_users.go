package auth

import "context"

// StaticUserSource serves users from memory. Used in tests and local
// development setups without a database.
type StaticUserSource struct {
	users map[string]User
}

func NewStaticUserSource(users ...User) *StaticUserSource {
	byUsername := make(map[string]User, len(users))
	for _, u := range users {
		byUsername[u.Username] = u
	}
	return &StaticUserSource{users: byUsername}
}

func (s *StaticUserSource) GetUserByUsername(_ context.Context, username string) (*User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
