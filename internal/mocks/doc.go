// Package mocks provides centralized mock implementations for testing.
//
// The store mocks keep entities in memory and behave like the postgres
// implementations for the paths services exercise: not-found and duplicate
// errors, ordering of listings, and WithTx returning the same store. Each
// mock also exposes function fields (CreateFn, UpdateFn, ...) so a test can
// inject failures for a single call.
//
// Usage:
//
//	users := mocks.NewMockUserStore()
//	users.CreateFn = func(ctx context.Context, u *domain.User) error {
//	    return store.ErrPhoneExists
//	}
//	svc := service.NewUserService(users, db, cfg, logger)
package mocks
