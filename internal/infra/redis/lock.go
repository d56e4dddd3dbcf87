// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"langtest-practice/internal/domain/ports/repository"

	"github.com/google/uuid"
)

var _ repository.DemoClaimer = (*DemoClaimStore)(nil)

// DemoClaimStore holds at most one in-flight demo consumption per account.
// TryClaim never waits: a held claim means another request is already spending
// the allowance.
type DemoClaimStore struct {
	cli RedisClient
}

func NewDemoClaimStore(c RedisClient) *DemoClaimStore {
	return &DemoClaimStore{cli: c}
}

func DemoClaimKey(accountID string) string {
	return fmt.Sprintf("demo_claim:%s", accountID)
}

func (s *DemoClaimStore) TryClaim(ctx context.Context, accountID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.cli.SetNX(ctx, DemoClaimKey(accountID), token, ttl)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the claim only if token still owns it; an expired claim that
// was re-taken by another request is left alone.
func (s *DemoClaimStore) Release(ctx context.Context, accountID, token string) error {
	_, err := s.cli.CompareAndDelete(ctx, DemoClaimKey(accountID), token)
	return err
}
