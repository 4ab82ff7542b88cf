package bdsmlr

import "context"

// IdentityService covers session lifecycle operations.
type IdentityService struct {
	client *Client
}

// Login forces a credential refresh now instead of waiting for the first
// authenticated call. Useful for validating configured credentials at
// startup.
func (s *IdentityService) Login(ctx context.Context) error {
	s.client.tokens.Invalidate()
	_, err := s.client.tokens.Token(ctx)
	return err
}

// ClearAuth drops the credential from memory and the persistent store. The
// next authenticated call logs in again.
func (s *IdentityService) ClearAuth() {
	s.client.tokens.Invalidate()
}

// ClearSession drops the credential and every cached response. Used when
// switching accounts, where cached data from the previous session must not
// leak into the next.
func (s *IdentityService) ClearSession() {
	s.client.tokens.Invalidate()
	s.client.ClearCaches()
}
