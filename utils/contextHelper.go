package utils

import (
	"context"

	"github.com/mmdatafocus/jewel_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyRole          = appctx.ContextKeyRole
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyIsGuest       = appctx.ContextKeyIsGuest
)

// GuestActorName is recorded on audit events when no identity was presented.
const GuestActorName = "guest"

// Actor is the optional identity attached to a request.
type Actor struct {
	Id      int
	Name    string
	Role    string
	IsGuest bool
}

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetGuestInContext(ctx context.Context, isGuest bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsGuest, isGuest)
}

// SetActorInContext stores every identity field at once.
func SetActorInContext(ctx context.Context, actor Actor) context.Context {
	ctx = SetUserIdInContext(ctx, actor.Id)
	ctx = SetUserNameInContext(ctx, actor.Name)
	ctx = SetRoleInContext(ctx, actor.Role)
	return SetGuestInContext(ctx, actor.IsGuest)
}

// ActorFromContext never fails: a request without identity yields the guest actor.
func ActorFromContext(ctx context.Context) Actor {
	if ctx == nil {
		return Actor{Name: GuestActorName, IsGuest: true}
	}
	id, hasId := GetUserIdFromContext(ctx)
	name, _ := GetUserNameFromContext(ctx)
	role, _ := GetRoleFromContext(ctx)
	guest, _ := appctx.GetBool(ctx, ContextKeyIsGuest)
	if guest || !hasId || id <= 0 {
		if name == "" {
			name = GuestActorName
		}
		return Actor{Name: name, Role: role, IsGuest: true}
	}
	if name == "" {
		name = "user"
	}
	return Actor{Id: id, Name: name, Role: role}
}
