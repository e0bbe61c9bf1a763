package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	talentchain "github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
	"github.com/kbunet/talentchain/internal/usecase"
	"github.com/kbunet/talentchain/jwt"
)

var tracer = otel.Tracer("auth")

const nonceTTL = 5 * time.Minute

// NonceStore keeps login nonces per wallet address. Take consumes the nonce
// so each one authorizes at most one login.
type NonceStore interface {
	Set(ctx context.Context, address, nonce string, ttl time.Duration) error
	Take(ctx context.Context, address string) (string, error)
}

type AuthService struct {
	config domain.Config
	users  *usecase.UserUsecase
	nonces NonceStore
}

func NewAuthService(
	config domain.Config,
	users *usecase.UserUsecase,
	nonces NonceStore,
) *AuthService {
	return &AuthService{
		config: config,
		users:  users,
		nonces: nonces,
	}
}

type LoginInput struct {
	DID           string `json:"did"`
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	User        domain.User `json:"user"`
}

type AuthResult struct {
	DID  string
	Role talentchain.Role
}

// GenerateNonce creates and stores a fresh login nonce for a wallet.
func (s *AuthService) GenerateNonce(ctx context.Context, address string) (string, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.GenerateNonce")
	defer span.End()

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(buf)

	err := s.nonces.Set(ctx, strings.ToLower(address), nonce, nonceTTL)
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to store nonce"))
		return "", err
	}
	return nonce, nil
}

// LoginMessage renders the text the wallet is asked to sign.
func (s *AuthService) LoginMessage(address, nonce string) string {
	return fmt.Sprintf(
		"Welcome to KBU TalentChain!\n\nPlease sign this message to authenticate your identity.\n\nWallet: %s\nNonce: %s",
		address, nonce,
	)
}

// Login validates a wallet signature over the login message, consumes the
// nonce and issues a server signed JWT. Unknown DIDs are auto-registered.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Login")
	defer span.End()

	if !talentchain.IsDID(input.DID) {
		return LoginResult{}, domain.ValidationError{Message: "invalid did"}
	}
	embedded, err := talentchain.AddressFromDID(input.DID)
	if err != nil || !strings.EqualFold(embedded, input.WalletAddress) {
		return LoginResult{}, domain.ValidationError{Message: "did does not match wallet address"}
	}

	nonce, err := s.nonces.Take(ctx, strings.ToLower(input.WalletAddress))
	if err != nil {
		span.RecordError(errors.Wrap(err, "nonce lookup failed"))
		return LoginResult{}, fmt.Errorf("no login nonce issued for this wallet")
	}
	if !strings.Contains(input.Message, "Nonce: "+nonce) {
		return LoginResult{}, fmt.Errorf("login message does not carry the issued nonce")
	}

	signature, err := hex.DecodeString(strings.TrimPrefix(input.Signature, "0x"))
	if err != nil {
		return LoginResult{}, domain.ValidationError{Message: "malformed signature"}
	}
	err = talentchain.VerifyPersonalSignature(input.Message, signature, input.WalletAddress)
	if err != nil {
		span.RecordError(errors.Wrap(err, "signature verification failed"))
		return LoginResult{}, fmt.Errorf("invalid signature")
	}

	user, err := s.users.GetByDID(ctx, input.DID)
	if errors.Is(err, domain.ErrNotFound) {
		user, err = s.users.Create(ctx, usecase.CreateUserInput{
			DID:           input.DID,
			WalletAddress: input.WalletAddress,
			Name:          "User-" + input.DID[len(input.DID)-8:],
		})
	}
	if err != nil {
		return LoginResult{}, err
	}

	if !strings.EqualFold(user.WalletAddress, input.WalletAddress) {
		wallet := input.WalletAddress
		user, err = s.users.Update(ctx, user.ID, usecase.UserPatch{WalletAddress: &wallet})
		if err != nil {
			return LoginResult{}, err
		}
	}

	token, err := jwt.Create(jwt.Claims{
		Issuer:         s.config.Address,
		Subject:        "talentchain",
		Audience:       s.config.FQDN,
		ExpirationTime: strconv.FormatInt(time.Now().Add(24*time.Hour).Unix(), 10),
		IssuedAt:       strconv.FormatInt(time.Now().Unix(), 10),
		DID:            user.DID,
		Role:           string(user.Role),
	}, s.config.PrivateKey)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "failed to sign token")
	}

	return LoginResult{AccessToken: token, User: user}, nil
}

// AuthJwt validates a bearer token and resolves the requester identity.
func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	_, claims, err := jwt.Validate(token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject != "talentchain" {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	if !strings.EqualFold(claims.Issuer, s.config.Address) {
		err := fmt.Errorf("token was not signed by this node")
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{DID: claims.DID, Role: talentchain.Role(claims.Role)}, nil
}
