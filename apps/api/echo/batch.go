package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/user"
)

var errBatchNotFoundInCtx = errors.New("batch object not found in echo.Context")

type batchApi struct {
	svc      batch.Service
	usrSvc   user.Service
	validate *validator.Validate
}

// registerBatchAPI mounts the batch endpoints and returns the `/batches/:id`
// group so the dependent record APIs can hang their batch-scoped routes off it.
func registerBatchAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc batch.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) *echo.Group {
	api := batchApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	bg := g.Group("/batches", jwt)
	bg.POST("", api.create, teacherOrAdminMiddleware())
	bg.GET("", api.query)

	// detail endpoints; the object middleware loads the batch and gates view access
	dg := bg.Group("/:id", batchObjectMiddleware(api.svc, api.usrSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/students", api.addStudent)
	dg.DELETE("/students/:studentId", api.removeStudent)
	return dg
}

// Handlers

func (api *batchApi) create(ctx echo.Context) error {
	var data batch.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}

	// a teacher may only open batches under their own name
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		data.TeacherID = ctxUsr.ID
	}

	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating batch")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *batchApi) query(ctx echo.Context) error {
	filter := new(batch.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []batch.Batch{})
	}
	filter.Clean()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scopeBatchFilter(filter, ctxUsr)

	ordering := new(Ordering)
	ordering.Bind(ctx)

	batches, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying batches")
	}
	if batches == nil {
		batches = []batch.Batch{}
	}
	return ctx.JSON(http.StatusOK, batches)
}

func (api *batchApi) retrieve(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *batchApi) update(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !batch.CanActOn(ctxUsr, b, batch.ActionManage) {
		return errHttpForbidden
	}

	var data batch.UpdateBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBatch")
	}
	// only admin may hand the batch over to another teacher
	if !ctxUsr.IsAdmin() && data.TeacherID != "" && data.TeacherID != b.TeacherID {
		return errHttpForbidden
	}
	if err := data.Validate(b, api.validate); err != nil {
		return err
	}

	b, err = api.svc.Update(b, data)
	if err != nil {
		return errors.Wrap(err, "updating batch")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *batchApi) destroy(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(b.ID); err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *batchApi) addStudent(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !batch.CanActOn(ctxUsr, b, batch.ActionManage) {
		return errHttpForbidden
	}

	var data EnrollmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollmentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err = api.svc.AddStudent(b, data.StudentID)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *batchApi) removeStudent(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !batch.CanActOn(ctxUsr, b, batch.ActionManage) {
		return errHttpForbidden
	}

	b, err = api.svc.RemoveStudent(b, ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.JSON(http.StatusOK, b)
}

// scopeBatchFilter pins the filter to the batches ctxUsr may see.
// Admins see everything, teachers their own batches, students the batches
// they are enrolled in.
func scopeBatchFilter(filter *batch.QueryFilter, ctxUsr user.User) {
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		filter.TeacherID = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}
}

// batchObjectMiddleware loads the batch from the `id` path param into the
// context and gates it behind view access.
func batchObjectMiddleware(svc batch.Service, usrSvc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			b, err := svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == batch.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding batch by ID")
			}
			if !batch.CanActOn(ctxUsr, b, batch.ActionView) {
				return errHttpForbidden
			}
			ctx.Set("object", b)
			return next(ctx)
		}
	}
}

type EnrollmentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

func (er *EnrollmentRequest) Validate(validate *validator.Validate) error {
	er.StudentID = core.CleanString(er.StudentID)
	return validate.Struct(er)
}
