package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrForbidden           = errors.New("access forbidden")
	ErrNoSession           = errors.New("no active session")
	ErrPendingConfirmation = errors.New("record is awaiting server confirmation")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrInvalidInput        = errors.New("invalid input")
)

// User-facing messages stored in the stores' error fields.
const (
	MsgLoginFailed         = "Login gagal"
	MsgUpdateProfileFailed = "Update gagal"

	MsgFetchRoomsFailed  = "Gagal memuat ruangan"
	MsgCreateRoomFailed  = "Gagal membuat ruangan"
	MsgUpdateRoomFailed  = "Gagal mengupdate ruangan"
	MsgDeleteRoomFailed  = "Gagal menghapus ruangan"
	MsgFetchAssetsFailed = "Gagal memuat aset"
	MsgCreateAssetFailed = "Gagal membuat aset"
	MsgUpdateAssetFailed = "Gagal mengupdate aset"
	MsgDeleteAssetFailed = "Gagal menghapus aset"
)
