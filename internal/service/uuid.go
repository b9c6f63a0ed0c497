package service

import "github.com/google/uuid"

// DefaultUUIDGenerator generates random UUIDs.
type DefaultUUIDGenerator struct{}

func (DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
