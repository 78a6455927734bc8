package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"cashledger/internal/apierror"
	"cashledger/internal/middleware"
	"cashledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// decimal.Decimal is validated as a number so tags like gt=0 work on amounts.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs the validator tags. On failure
// it writes the response; the caller returns immediately.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeError maps a service error onto the API envelope. Unknown errors are
// attached to the context for ErrorHandler, which logs them and answers 500.
func writeError(c *gin.Context, err error) {
	var (
		closed    *service.AlreadyClosedError
		locked    *service.RegisterLockedError
		count     *service.InvalidCountError
		input     *service.InvalidInputError
		persisted *service.PersistenceError
	)
	switch {
	case errors.As(err, &closed):
		c.JSON(http.StatusConflict, apierror.WithCode(apierror.CodeAlreadyClosed, err.Error()).
			With("closing_id", closed.ClosingID).
			With("reopen_at", closed.ReopenAt).
			With("remaining", service.FormatRemaining(closed.Remaining)))
	case errors.As(err, &locked):
		c.JSON(http.StatusLocked, apierror.WithCode(apierror.CodeRegisterLocked, err.Error()).
			With("closing_id", locked.ClosingID).
			With("reopen_at", locked.ReopenAt).
			With("remaining", service.FormatRemaining(locked.Remaining)))
	case errors.As(err, &count):
		c.JSON(http.StatusUnprocessableEntity, apierror.WithCode(apierror.CodeInvalidCount, err.Error()))
	case errors.As(err, &input):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()).With("field", input.Field))
	case errors.Is(err, service.ErrClosingInProgress):
		c.JSON(http.StatusConflict, apierror.WithCode(apierror.CodeClosingInProgress, err.Error()))
	case errors.Is(err, service.ErrConfirmationRequired):
		c.JSON(http.StatusPreconditionRequired, apierror.WithCode(apierror.CodeConfirmationRequired, err.Error()))
	case errors.Is(err, service.ErrTransactionLocked):
		c.JSON(http.StatusLocked, apierror.WithCode(apierror.CodeTransactionLocked, err.Error()))
	case errors.Is(err, service.ErrDayClosed), errors.Is(err, service.ErrAlreadySettled), errors.Is(err, service.ErrSettlementConflict):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.New("Not found"))
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, apierror.New(err.Error()))
	case errors.Is(err, service.ErrDelegationDenied):
		c.JSON(http.StatusForbidden, apierror.New(err.Error()))
	case errors.As(err, &persisted):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.WithCode(apierror.CodePersistence,
			"The operation could not be saved; nothing was changed: "+persisted.Error()).
			With("cause", persisted.Err.Error()))
	default:
		_ = c.Error(err)
	}
}

// registerContext resolves the register named by the :id path parameter
// within the caller's tenant. Writes the error response on failure.
func registerContext(c *gin.Context, contexts *service.ContextFactory) (service.RegisterContext, bool) {
	claims := middleware.GetClaims(c)
	rc, err := contexts.Resolve(c.Request.Context(), claims.TenantID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return rc, false
	}
	return rc, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
