package interfaces

import "context"

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// PasswordHasher turns a plaintext credential into a stored hash and checks a
// candidate against it. Verify returns false, nil on a plain mismatch.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}
