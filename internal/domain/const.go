package domain

const (
	RequesterDidCtxKey  = "tc-requesterDid"
	RequesterRoleCtxKey = "tc-requesterRole"
)
