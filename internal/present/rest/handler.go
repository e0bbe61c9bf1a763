package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
	"github.com/kbunet/talentchain/internal/present/rest/middleware"
	"github.com/kbunet/talentchain/internal/present/rest/presenter"
	"github.com/kbunet/talentchain/internal/service"
	"github.com/kbunet/talentchain/internal/usecase"
)

// EventStream delivers published events to a realtime subscriber until ctx
// is done. New DID filters arrive on input.
type EventStream interface {
	Realtime(ctx context.Context, input <-chan []string, output chan<- talentchain.Event)
}

type Handler struct {
	config       domain.Config
	certificates *usecase.CertificateUsecase
	users        *usecase.UserUsecase
	institutions *usecase.InstitutionUsecase
	employers    *usecase.EmployerUsecase
	reputation   *usecase.ReputationUsecase
	auth         *service.AuthService
	events       EventStream
}

func NewHandler(
	config domain.Config,
	certificates *usecase.CertificateUsecase,
	users *usecase.UserUsecase,
	institutions *usecase.InstitutionUsecase,
	employers *usecase.EmployerUsecase,
	reputation *usecase.ReputationUsecase,
	auth *service.AuthService,
	events EventStream,
) *Handler {
	return &Handler{
		config:       config,
		certificates: certificates,
		users:        users,
		institutions: institutions,
		employers:    employers,
		reputation:   reputation,
		auth:         auth,
		events:       events,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, authMw *middleware.AuthMiddleware) {
	e.GET("/health", h.handleHealth)
	e.GET("/realtime", h.handleRealtime)

	api := e.Group("/api/v1")
	api.GET("/auth/nonce", h.handleAuthNonce)
	api.GET("/auth/message", h.handleAuthMessage)
	api.POST("/auth/login", h.handleLogin)

	api.POST("/certificates", h.handleCertificateIssue, authMw.RequireIdentified)
	api.GET("/certificates", h.handleCertificateList)
	api.GET("/certificates/:id", h.handleCertificateGet)
	api.PATCH("/certificates/:id", h.handleCertificateUpdate, authMw.RequireIdentified)
	api.DELETE("/certificates/:id", h.handleCertificateRemove, authMw.RequireIdentified)
	api.GET("/certificates/hash/:hash", h.handleCertificateByHash)
	api.GET("/certificates/hash/:hash/ledger", h.handleCertificateLedgerDetails)
	api.GET("/certificates/holder/:did", h.handleCertificatesByHolder)
	api.GET("/certificates/issuer/:did", h.handleCertificatesByIssuer)
	api.GET("/certificates/:id/metadata", h.handleCertificateMetadata)

	api.POST("/verification/verify", h.handleVerify)
	api.GET("/verification/logs/:id", h.handleVerificationLogs)

	api.POST("/users", h.handleUserCreate)
	api.GET("/users", h.handleUserList)
	api.GET("/users/:id", h.handleUserGet)
	api.PATCH("/users/:id", h.handleUserUpdate, authMw.RequireIdentified)
	api.DELETE("/users/:id", h.handleUserRemove, authMw.RequireIdentified)
	api.GET("/users/did/:did", h.handleUserGetByDID)
	api.GET("/users/wallet/:address", h.handleUserGetByWallet)
	api.PATCH("/users/:id/role", h.handleUserUpdateRole, authMw.RequireIdentified)

	api.POST("/institutions", h.handleInstitutionRegister, authMw.RequireIdentified)
	api.GET("/institutions", h.handleInstitutionList)
	api.GET("/institutions/:id", h.handleInstitutionGet)
	api.GET("/institutions/did/:did", h.handleInstitutionGetByDID)
	api.PATCH("/institutions/:id", h.handleInstitutionUpdate, authMw.RequireIdentified)
	api.DELETE("/institutions/:id", h.handleInstitutionRemove, authMw.RequireIdentified)
	api.PATCH("/institutions/:id/approve", h.handleInstitutionApprove, authMw.RequireIdentified)

	api.POST("/employers", h.handleEmployerRegister, authMw.RequireIdentified)
	api.GET("/employers", h.handleEmployerList)
	api.GET("/employers/:id", h.handleEmployerGet)
	api.GET("/employers/did/:did", h.handleEmployerGetByDID)
	api.PATCH("/employers/:id", h.handleEmployerUpdate, authMw.RequireIdentified)
	api.DELETE("/employers/:id", h.handleEmployerRemove, authMw.RequireIdentified)
	api.PATCH("/employers/:id/approve", h.handleEmployerApprove, authMw.RequireIdentified)

	api.POST("/reputation", h.handleReputationSubmit, authMw.RequireIdentified)
	api.GET("/reputation/:did", h.handleReputationList)
	api.GET("/reputation/:did/score", h.handleReputationScore)
}

// presentError maps domain errors to status codes.
func presentError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrDuplicate):
		return presenter.BadRequest(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	default:
		return presenter.InternalError(c, err)
	}
}

func requesterDid(c echo.Context) string {
	did, _ := c.Request().Context().Value(domain.RequesterDidCtxKey).(string)
	return did
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok", "fqdn": h.config.FQDN})
}

// --- auth

func (h *Handler) handleAuthNonce(c echo.Context) error {
	ctx := c.Request().Context()

	address := c.QueryParam("address")
	if address == "" {
		return presenter.BadRequestMessage(c, "address parameter is required")
	}

	nonce, err := h.auth.GenerateNonce(ctx, address)
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, echo.Map{"nonce": nonce})
}

func (h *Handler) handleAuthMessage(c echo.Context) error {
	address := c.QueryParam("address")
	nonce := c.QueryParam("nonce")
	if address == "" || nonce == "" {
		return presenter.BadRequestMessage(c, "address and nonce parameters are required")
	}
	return presenter.OK(c, echo.Map{"message": h.auth.LoginMessage(address, nonce)})
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var input service.LoginInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.auth.Login(ctx, input)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return presenter.BadRequest(c, err)
		}
		return presenter.Unauthorized(c, "login failed")
	}
	return presenter.OK(c, result)
}

// --- certificates

type issueRequest struct {
	Title     string                      `json:"title"`
	Type      talentchain.CertificateType `json:"type"`
	IssuerDid string                      `json:"issuerDid"`
	HolderDid string                      `json:"holderDid"`
	Extra     map[string]any              `json:"extra"`
}

func (h *Handler) handleCertificateIssue(c echo.Context) error {
	ctx := c.Request().Context()

	var req issueRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.IssuerDid == "" {
		req.IssuerDid = requesterDid(c)
	}

	certificate, err := h.certificates.Issue(ctx, usecase.IssueInput{
		Title:     req.Title,
		Type:      req.Type,
		IssuerDID: req.IssuerDid,
		HolderDID: req.HolderDid,
		Extra:     req.Extra,
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.Created(c, certificate)
}

func (h *Handler) handleCertificateList(c echo.Context) error {
	certificates, err := h.certificates.List(c.Request().Context())
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, certificates)
}

func (h *Handler) handleCertificateGet(c echo.Context) error {
	certificate, err := h.certificates.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, certificate)
}

func (h *Handler) handleCertificateByHash(c echo.Context) error {
	certificate, err := h.certificates.FindByHash(c.Request().Context(), c.Param("hash"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, certificate)
}

func (h *Handler) handleCertificatesByHolder(c echo.Context) error {
	certificates, err := h.certificates.FindByHolder(c.Request().Context(), c.Param("did"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, certificates)
}

func (h *Handler) handleCertificatesByIssuer(c echo.Context) error {
	certificates, err := h.certificates.FindByIssuer(c.Request().Context(), c.Param("did"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, certificates)
}

func (h *Handler) handleCertificateLedgerDetails(c echo.Context) error {
	record, err := h.certificates.LedgerDetails(c.Request().Context(), c.Param("hash"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, record)
}

func (h *Handler) handleCertificateMetadata(c echo.Context) error {
	metadata, err := h.certificates.Metadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, metadata)
}

type certificatePatchRequest struct {
	Title    *string `json:"title"`
	Verified *bool   `json:"verified"`
}

func (h *Handler) handleCertificateUpdate(c echo.Context) error {
	var req certificatePatchRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	certificate, err := h.certificates.Update(c.Request().Context(), c.Param("id"), usecase.CertificatePatch{
		Title:    req.Title,
		Verified: req.Verified,
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, certificate)
}

func (h *Handler) handleCertificateRemove(c echo.Context) error {
	if err := h.certificates.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// --- verification

const anonymousVerifierDid = "did:kbu:0x0000000000000000000000000000000000000000"

type verifyRequest struct {
	Hash        string `json:"hash"`
	VerifierDid string `json:"verifierDid"`
}

func (h *Handler) handleVerify(c echo.Context) error {
	ctx := c.Request().Context()

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !talentchain.IsContentHash(req.Hash) {
		return presenter.BadRequestMessage(c, "invalid content hash")
	}
	if req.VerifierDid == "" {
		req.VerifierDid = requesterDid(c)
	}
	if req.VerifierDid == "" {
		// unauthenticated verifiers are logged under the zero did
		req.VerifierDid = anonymousVerifierDid
	}

	result, err := h.certificates.Verify(ctx, req.Hash, req.VerifierDid)
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, echo.Map{"valid": result.Valid, "certificate": result.Certificate})
}

func (h *Handler) handleVerificationLogs(c echo.Context) error {
	logs, err := h.certificates.Verifications(c.Request().Context(), c.Param("id"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, logs)
}

// --- users

type userCreateRequest struct {
	DID           string           `json:"did"`
	WalletAddress string           `json:"walletAddress"`
	Name          string           `json:"name"`
	Email         string           `json:"email"`
	Role          talentchain.Role `json:"role"`
}

func (h *Handler) handleUserCreate(c echo.Context) error {
	var req userCreateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	user, err := h.users.Create(c.Request().Context(), usecase.CreateUserInput{
		DID:           req.DID,
		WalletAddress: req.WalletAddress,
		Name:          req.Name,
		Email:         req.Email,
		Role:          req.Role,
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, user)
}

func (h *Handler) handleUserList(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, users)
}

func (h *Handler) handleUserGet(c echo.Context) error {
	user, err := h.users.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, user)
}

func (h *Handler) handleUserGetByDID(c echo.Context) error {
	user, err := h.users.GetByDID(c.Request().Context(), c.Param("did"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, user)
}

func (h *Handler) handleUserGetByWallet(c echo.Context) error {
	user, err := h.users.GetByWallet(c.Request().Context(), c.Param("address"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, user)
}

type userPatchRequest struct {
	Name          *string           `json:"name"`
	Email         *string           `json:"email"`
	WalletAddress *string           `json:"walletAddress"`
	Role          *talentchain.Role `json:"role"`
}

func (h *Handler) handleUserUpdate(c echo.Context) error {
	var req userPatchRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	user, err := h.users.Update(c.Request().Context(), c.Param("id"), usecase.UserPatch{
		Name:          req.Name,
		Email:         req.Email,
		WalletAddress: req.WalletAddress,
		Role:          req.Role,
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, user)
}

func (h *Handler) handleUserUpdateRole(c echo.Context) error {
	var req struct {
		Role talentchain.Role `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	user, err := h.users.UpdateRole(c.Request().Context(), c.Param("id"), req.Role)
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, user)
}

func (h *Handler) handleUserRemove(c echo.Context) error {
	if err := h.users.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// --- institutions

type institutionRequest struct {
	Name       string   `json:"name"`
	DID        string   `json:"did"`
	PublicKeys []string `json:"publicKeys"`
}

func (h *Handler) handleInstitutionRegister(c echo.Context) error {
	var req institutionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	institution, err := h.institutions.Register(c.Request().Context(), usecase.CreateInstitutionInput{
		Name:       req.Name,
		DID:        req.DID,
		PublicKeys: req.PublicKeys,
		OwnerID:    requesterDid(c),
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, institution)
}

func (h *Handler) handleInstitutionList(c echo.Context) error {
	institutions, err := h.institutions.List(c.Request().Context())
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, institutions)
}

func (h *Handler) handleInstitutionGet(c echo.Context) error {
	institution, err := h.institutions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, institution)
}

func (h *Handler) handleInstitutionGetByDID(c echo.Context) error {
	institution, err := h.institutions.GetByDID(c.Request().Context(), c.Param("did"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, institution)
}

type institutionPatchRequest struct {
	Name       *string   `json:"name"`
	PublicKeys *[]string `json:"publicKeys"`
}

func (h *Handler) handleInstitutionUpdate(c echo.Context) error {
	var req institutionPatchRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	institution, err := h.institutions.Update(c.Request().Context(), c.Param("id"), usecase.InstitutionPatch{
		Name:       req.Name,
		PublicKeys: req.PublicKeys,
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, institution)
}

func (h *Handler) handleInstitutionApprove(c echo.Context) error {
	institution, err := h.institutions.Approve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, institution)
}

func (h *Handler) handleInstitutionRemove(c echo.Context) error {
	if err := h.institutions.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// --- employers

type employerRequest struct {
	CompanyName string   `json:"companyName"`
	DID         string   `json:"did"`
	PublicKeys  []string `json:"publicKeys"`
}

func (h *Handler) handleEmployerRegister(c echo.Context) error {
	var req employerRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	employer, err := h.employers.Register(c.Request().Context(), usecase.CreateEmployerInput{
		CompanyName: req.CompanyName,
		DID:         req.DID,
		PublicKeys:  req.PublicKeys,
		OwnerID:     requesterDid(c),
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, employer)
}

func (h *Handler) handleEmployerList(c echo.Context) error {
	employers, err := h.employers.List(c.Request().Context())
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, employers)
}

func (h *Handler) handleEmployerGet(c echo.Context) error {
	employer, err := h.employers.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, employer)
}

func (h *Handler) handleEmployerGetByDID(c echo.Context) error {
	employer, err := h.employers.GetByDID(c.Request().Context(), c.Param("did"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, employer)
}

type employerPatchRequest struct {
	CompanyName *string   `json:"companyName"`
	PublicKeys  *[]string `json:"publicKeys"`
}

func (h *Handler) handleEmployerUpdate(c echo.Context) error {
	var req employerPatchRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	employer, err := h.employers.Update(c.Request().Context(), c.Param("id"), usecase.EmployerPatch{
		CompanyName: req.CompanyName,
		PublicKeys:  req.PublicKeys,
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, employer)
}

func (h *Handler) handleEmployerApprove(c echo.Context) error {
	employer, err := h.employers.Approve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, employer)
}

func (h *Handler) handleEmployerRemove(c echo.Context) error {
	if err := h.employers.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// --- reputation

type reputationRequest struct {
	TargetDid string `json:"targetDid"`
	SourceDid string `json:"sourceDid"`
	Score     int    `json:"score"`
	Message   string `json:"message"`
}

func (h *Handler) handleReputationSubmit(c echo.Context) error {
	var req reputationRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.SourceDid == "" {
		req.SourceDid = requesterDid(c)
	}

	reputation, err := h.reputation.Submit(c.Request().Context(), usecase.SubmitReputationInput{
		TargetDID: req.TargetDid,
		SourceDID: req.SourceDid,
		Score:     req.Score,
		Message:   req.Message,
	})
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, reputation)
}

func (h *Handler) handleReputationList(c echo.Context) error {
	reputations, err := h.reputation.ListByTarget(c.Request().Context(), c.Param("did"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, reputations)
}

func (h *Handler) handleReputationScore(c echo.Context) error {
	score, err := h.reputation.Score(c.Request().Context(), c.Param("did"))
	if err != nil {
		return presentError(c, err)
	}
	return presenter.OK(c, score)
}

// --- realtime

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string   `json:"type"`
	Dids []string `json:"dids"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan talentchain.Event)

	go h.events.Realtime(ctx, input, output)

	// Buffered so the reader never blocks handing off after a write failure
	// already ended the main loop.
	quit := make(chan struct{}, 1)

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Dids:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Dids),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case items := <-output:
			err := ws.WriteJSON(items)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
