package user

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-memdb"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/qprofile/errors"
	"github.com/kbukum/qprofile/logger"
	"github.com/kbukum/qprofile/observability"
	"github.com/kbukum/qprofile/sse"
	"github.com/kbukum/qprofile/validation"
)

const componentName = "user"

// Service applies user mutations and publishes a change event after each
// commit. Mutations are serialized so events leave in commit order.
type Service struct {
	store     *Store
	publisher sse.Broadcaster
	metrics   *observability.Metrics
	log       *logger.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewService creates a user service. metrics may be nil.
func NewService(store *Store, publisher sse.Broadcaster, metrics *observability.Metrics) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		log:       logger.WithComponent(componentName),
		now:       time.Now,
	}
}

// List returns all users ordered by id.
func (s *Service) List(ctx context.Context) (users []User, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, componentName, "list")
	defer func() { op.End(ctx, err) }()

	users, err = s.store.List(s.store.Txn(false))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	op.SetAttributes(attribute.Int("user.count", len(users)))
	return users, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (u *User, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, componentName, "get",
		attribute.Int64(observability.AttrUserID, id))
	defer func() { op.End(ctx, err) }()

	u, err = s.store.Get(s.store.Txn(false), id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if u == nil {
		return nil, apperrors.NotFound("user", id)
	}
	return u, nil
}

// Create stores a new user and publishes user_created.
func (s *Service) Create(ctx context.Context, req CreateRequest) (u *User, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, componentName, "create")
	defer func() { op.End(ctx, err) }()

	req.Username = strings.TrimSpace(req.Username)
	if err := validation.Validate(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.store.Txn(true)
	defer txn.Abort()

	if req.Username != "" {
		existing, err := s.store.ByUsername(txn, req.Username)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if existing != nil {
			return nil, apperrors.AlreadyExists("user").WithDetail("username", req.Username)
		}
	}

	id := s.store.NextID()
	username := req.Username
	if username == "" {
		if id, username, err = s.defaultName(txn, id); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	u = &User{ID: id, Username: username, CreatedAt: s.now().UTC().Truncate(time.Second)}
	if err := s.store.Insert(txn, u); err != nil {
		if existing, _ := s.store.ByUsername(txn, username); existing != nil {
			return nil, apperrors.AlreadyExists("user").WithDetail("username", username)
		}
		return nil, apperrors.Internal(err)
	}
	txn.Commit()
	op.SetAttributes(attribute.Int64(observability.AttrUserID, id))

	s.publish(ctx, sse.KindUserCreated, u)
	s.log.WithContext(ctx).Info("User created", map[string]interface{}{
		"user_id":  u.ID,
		"username": u.Username,
	})
	return u, nil
}

// defaultName returns "user<id>", reserving further ids while an explicit
// username already holds that name.
func (s *Service) defaultName(txn *memdb.Txn, id int64) (int64, string, error) {
	for {
		name := fmt.Sprintf("user%d", id)
		existing, err := s.store.ByUsername(txn, name)
		if err != nil {
			return 0, "", err
		}
		if existing == nil {
			return id, name, nil
		}
		id = s.store.NextID()
	}
}

// Delete removes a user by id and publishes user_deleted.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, componentName, "delete",
		attribute.Int64(observability.AttrUserID, id))
	defer func() { op.End(ctx, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.store.Txn(true)
	defer txn.Abort()

	u, err := s.store.Get(txn, id)
	if err != nil {
		return apperrors.Internal(err)
	}
	if u == nil {
		return apperrors.NotFound("user", id)
	}
	return s.commitDelete(ctx, txn, u)
}

// DeleteLatest removes the most recently created user.
func (s *Service) DeleteLatest(ctx context.Context) (u *User, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, componentName, "delete_latest")
	defer func() { op.End(ctx, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.store.Txn(true)
	defer txn.Abort()

	u, err = s.store.Latest(txn)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if u == nil {
		return nil, apperrors.FailedPrecondition("No users to delete")
	}
	op.SetAttributes(attribute.Int64(observability.AttrUserID, u.ID))
	if err := s.commitDelete(ctx, txn, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) commitDelete(ctx context.Context, txn *memdb.Txn, u *User) error {
	if err := s.store.Delete(txn, u); err != nil {
		return apperrors.Internal(err)
	}
	txn.Commit()

	s.publish(ctx, sse.KindUserDeleted, DeletedEvent{ID: u.ID})
	s.log.WithContext(ctx).Info("User deleted", map[string]interface{}{
		"user_id":  u.ID,
		"username": u.Username,
	})
	return nil
}

// publish broadcasts a committed change. The mutation already happened, so a
// failure here is logged rather than returned.
func (s *Service) publish(ctx context.Context, kind sse.Kind, payload any) {
	if _, err := s.publisher.Publish(ctx, kind, payload); err != nil {
		s.log.WithContext(ctx).Error("Failed to publish change event", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
	}
}
