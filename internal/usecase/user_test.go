package usecase

import (
	"context"
	"errors"
	"testing"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

type mockUserRepo struct {
	byDID map[string]domain.User
	byID  map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byDID: map[string]domain.User{}, byID: map[string]domain.User{}}
}

func (m *mockUserRepo) Create(ctx context.Context, user domain.User) error {
	if _, ok := m.byDID[user.DID]; ok {
		return domain.DuplicateError{Resource: "user", Key: user.DID}
	}
	m.byDID[user.DID] = user
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepo) Get(ctx context.Context, id string) (domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

func (m *mockUserRepo) GetByDID(ctx context.Context, did string) (domain.User, error) {
	u, ok := m.byDID[did]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

func (m *mockUserRepo) GetByWallet(ctx context.Context, address string) (domain.User, error) {
	for _, u := range m.byDID {
		if u.WalletAddress == address {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

func (m *mockUserRepo) List(ctx context.Context) ([]domain.User, error) { return nil, nil }

func (m *mockUserRepo) Update(ctx context.Context, id string, patch UserPatch) (domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.WalletAddress != nil {
		u.WalletAddress = *patch.WalletAddress
	}
	m.byID[id] = u
	m.byDID[u.DID] = u
	return u, nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.NotFoundError{Resource: "user"}
	}
	delete(m.byID, id)
	delete(m.byDID, u.DID)
	return nil
}

func TestUserCreateDefaultsRole(t *testing.T) {
	uc := NewUserUsecase(newMockUserRepo())

	user, err := uc.Create(context.Background(), CreateUserInput{
		DID:           holderDid,
		WalletAddress: "0x2222222222222222222222222222222222222222",
		Name:          "Alice",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if user.Role != talentchain.RoleUser {
		t.Fatalf("expected default role user, got %s", user.Role)
	}
	if user.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestUserCreateDuplicateDID(t *testing.T) {
	uc := NewUserUsecase(newMockUserRepo())

	input := CreateUserInput{DID: holderDid, Name: "Alice"}
	if _, err := uc.Create(context.Background(), input); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := uc.Create(context.Background(), input)
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUserUpdateRole(t *testing.T) {
	uc := NewUserUsecase(newMockUserRepo())

	user, _ := uc.Create(context.Background(), CreateUserInput{DID: holderDid, Name: "Alice"})

	updated, err := uc.UpdateRole(context.Background(), user.ID, talentchain.RoleInstitution)
	if err != nil {
		t.Fatalf("role update failed: %v", err)
	}
	if updated.Role != talentchain.RoleInstitution {
		t.Fatalf("expected role institution, got %s", updated.Role)
	}

	if _, err := uc.UpdateRole(context.Background(), user.ID, "superuser"); err == nil {
		t.Fatalf("expected invalid role rejection")
	}
}
