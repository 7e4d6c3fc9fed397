package echoapi

import (
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
)

var errMatNotFoundInCtx = errors.New("material object not found in echo.Context")

type materialApi struct {
	svc      material.Service
	batchSvc batch.Service
	usrSvc   user.Service
	files    core.FileStorage
	validate *validator.Validate
}

func registerMaterialAPI(
	g *echo.Group,
	batchDetail *echo.Group,
	jwt echo.MiddlewareFunc,
	svc material.Service,
	batchSvc batch.Service,
	usrSvc user.Service,
	files core.FileStorage,
	validate *validator.Validate,
) {
	api := materialApi{
		svc:      svc,
		batchSvc: batchSvc,
		usrSvc:   usrSvc,
		files:    files,
		validate: validate,
	}

	mg := g.Group("/materials", jwt)
	mg.POST("", api.create, teacherOrAdminMiddleware())
	mg.GET("", api.query)

	// detail endpoints; the object middleware loads the material and gates
	// view access, hiding inactive ones from students
	dg := mg.Group("/:id", materialObjectMiddleware(api.svc, api.batchSvc, api.usrSvc))
	dg.GET("", api.retrieve)
	dg.GET("/download", api.download)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	// materials of one batch; view access is enforced by the batch object middleware
	batchDetail.GET("/materials", api.queryForBatch)
}

// Handlers

func (api *materialApi) create(ctx echo.Context) error {
	var data material.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.batchSvc.GetByID(data.BatchID)
	if err != nil {
		if errors.Cause(err) == batch.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding batch by ID")
	}
	if !batch.CanActOn(ctxUsr, b, batch.ActionRecord) {
		return errHttpForbidden
	}

	mat, err := api.svc.Create(data, formFile(ctx, "file"), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

func (api *materialApi) query(ctx echo.Context) error {
	filter := new(material.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []material.Material{})
	}
	filter.Clean()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scopeMaterialFilter(filter, ctxUsr)

	ordering := new(Ordering)
	ordering.Bind(ctx)

	mats, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	if mats == nil {
		mats = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *materialApi) queryForBatch(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}

	filter := new(material.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []material.Material{})
	}
	filter.Clean()
	filter.BatchID = b.ID

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// students only see active materials
	if !ctxUsr.IsAdmin() && !ctxUsr.IsTeacher() {
		active := true
		filter.IsActive = &active
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	mats, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	if mats == nil {
		mats = []material.Material{}
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	mat, ok := ctx.Get("object").(material.Material)
	if !ok {
		return errors.Wrap(errMatNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, mat)
}

// download serves the stored document under its original name.
func (api *materialApi) download(ctx echo.Context) error {
	mat, ok := ctx.Get("object").(material.Material)
	if !ok {
		return errors.Wrap(errMatNotFoundInCtx, "retrieving object from context")
	}
	return ctx.Attachment(api.files.AbsPath(mat.File), mat.File.OriginalName)
}

func (api *materialApi) update(ctx echo.Context) error {
	mat, ok := ctx.Get("object").(material.Material)
	if !ok {
		return errors.Wrap(errMatNotFoundInCtx, "retrieving object from context")
	}

	// only the uploader or an admin may change a material
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && mat.CreatedBy.String != ctxUsr.ID {
		return errHttpForbidden
	}

	var data material.UpdateMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMaterial")
	}
	if err := data.Validate(mat, api.validate); err != nil {
		return err
	}

	mat, err = api.svc.Update(mat, data, formFile(ctx, "file"))
	if err != nil {
		return errors.Wrap(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	mat, ok := ctx.Get("object").(material.Material)
	if !ok {
		return errors.Wrap(errMatNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && mat.CreatedBy.String != ctxUsr.ID {
		return errHttpForbidden
	}

	if err := api.svc.Delete(mat.ID); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// scopeMaterialFilter pins the filter to the materials ctxUsr may see.
// Admins see everything, teachers the materials of their own batches, students
// the active materials of the batches they are enrolled in.
func scopeMaterialFilter(filter *material.QueryFilter, ctxUsr user.User) {
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		filter.TeacherID = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
		active := true
		filter.IsActive = &active
	}
}

// materialObjectMiddleware loads the material from the `id` path param, along
// with its batch, into the context and gates it behind batch view access.
// Inactive materials stay hidden from students.
func materialObjectMiddleware(svc material.Service, batchSvc batch.Service, usrSvc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			mat, err := svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == material.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding material by ID")
			}
			b, err := batchSvc.GetByID(mat.BatchID)
			if err != nil {
				if errors.Cause(err) == batch.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding batch by ID")
			}
			if !batch.CanActOn(ctxUsr, b, batch.ActionView) {
				return errHttpForbidden
			}
			if !batch.CanActOn(ctxUsr, b, batch.ActionRecord) && mat.IsActive != nil && !*mat.IsActive {
				return errHttpNotFound
			}
			ctx.Set("object", mat)
			ctx.Set("batch", b)
			return next(ctx)
		}
	}
}

// formFile pulls the uploaded file under field from the multipart form, if any.
func formFile(ctx echo.Context, field string) *multipart.FileHeader {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil
	}
	return fh
}
