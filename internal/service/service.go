// Package service implements the splitledger.v1 RPC services: expenses,
// settlements and group balances.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// ErrorFieldHeader carries the offending request field of a validation error.
const ErrorFieldHeader = "Error-Field"

// Options tune the ledger services. Zero values fall back to defaults.
type Options struct {
	Rounding        money.Rounding
	DefaultCurrency string
	// DefaultMode applies when a group has no settlement mode of its own.
	DefaultMode models.SettlementMode
	Metrics     *metrics.Ledger
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Rounding.Mode == "" {
		o.Rounding = money.DefaultRounding
	}
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = "USD"
	}
	if !o.DefaultMode.Valid() {
		o.DefaultMode = models.SettlementSimplified
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }
	}
	return o
}

// access is what the acting user may do inside one group.
type access struct {
	group *models.Group
	admin bool
}

// authorize loads the group and checks that userID is an active member.
func authorize(ctx context.Context, dir Directory, groupID, userID string) (*access, error) {
	group, err := dir.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	active, err := dir.IsActiveMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, apperr.Forbidden("user %s is not an active member of group %s", userID, groupID)
	}
	admin, err := dir.IsAdmin(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	return &access{group: group, admin: admin}, nil
}

// resolveMode picks the requested mode, then the group's, then the default.
func resolveMode(requested string, group *models.Group, fallback models.SettlementMode) (models.SettlementMode, error) {
	if requested != "" {
		mode := models.SettlementMode(strings.ToUpper(requested))
		if !mode.Valid() {
			return "", apperr.Validation("mode", "unknown settlement mode %q", requested)
		}
		return mode, nil
	}
	if group != nil && group.SettlementMode.Valid() {
		return group.SettlementMode, nil
	}
	return fallback, nil
}

// actingUser returns the authenticated user placed in ctx by the auth interceptor.
func actingUser(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("authentication required"))
	}
	return userID, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// validateRequest checks msg's validate tags and returns every violation as
// one validation error. The first field (by name) is reported as the field.
func validateRequest(msg any) error {
	err := validate.Struct(msg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("", "%s", err.Error())
	}

	sort.SliceStable(fieldErrs, func(i, j int) bool { return fieldErrs[i].Namespace() < fieldErrs[j].Namespace() })
	var combined error
	for _, fe := range fieldErrs {
		combined = multierr.Append(combined, apperr.Validation(fieldName(fe), "%s", validationMessage(fe)))
	}
	return combined
}

// fieldName drops the message type from the namespace: "CreateExpenseRequest.splits[0].userId" -> "splits[0].userId".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "SettlementScope.")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is not set", lowerFirst(fe.Param()))
	case "excluded_with":
		return fmt.Sprintf("must not be set together with %s", lowerFirst(fe.Param()))
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "numeric":
		return "must be a decimal number"
	case "len":
		return fmt.Sprintf("must be %s characters long", fe.Param())
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// toConnectError maps ledger errors onto Connect codes. Internal failures are
// logged with their cause and returned with a generic message.
func toConnectError(op string, err error, attrs ...any) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	var code connect.Code
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		code = connect.CodeInvalidArgument
	case apperr.KindNotFound:
		code = connect.CodeNotFound
	case apperr.KindAuthorization:
		code = connect.CodePermissionDenied
	default:
		slog.Error(op+" failed", append(attrs, "error", err)...)
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}

	slog.Warn(op+" rejected", append(attrs, "kind", string(apperr.KindOf(err)), "error", err)...)
	ce := connect.NewError(code, err)
	field := apperr.FieldOf(err)
	if field != "" {
		ce.Meta().Set(ErrorFieldHeader, field)
	}
	if detail, derr := errorDetail(apperr.KindOf(err), field); derr == nil {
		ce.AddDetail(detail)
	} else {
		slog.Warn("Failed to build error detail", "error", derr)
	}
	return ce
}

// errorDetail describes a classified error as a google.protobuf.Struct with
// "kind" and, when known, "field" keys.
func errorDetail(kind apperr.Kind, field string) (*connect.ErrorDetail, error) {
	fields := map[string]any{"kind": string(kind)}
	if field != "" {
		fields["field"] = field
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return connect.NewErrorDetail(st)
}
