package tests

import (
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/payment"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	filesvc "github.com/trezcool/darasa/services/files"
	logsvc "github.com/trezcool/darasa/services/logger"
	paymentsvc "github.com/trezcool/darasa/services/payment"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	testutil "github.com/trezcool/darasa/tests"
)

var (
	db  *dummydb.DB
	app Server

	usrRepo   user.Repository
	batchRepo batch.Repository
	attRepo   attendance.Repository
	asgRepo   assignment.Repository
	matRepo   material.Repository
	pmtRepo   payment.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Payment.MidtransServerKey = "SB-Mid-server-TEST"

	uploadsDir, err := os.MkdirTemp("", "darasa-test-media")
	if err != nil {
		fmt.Printf("os.MkdirTemp(): %v", err)
		os.Exit(1)
	}
	conf.Uploads.Dir = uploadsDir

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords(logger)

	// set up DB & repos
	if db, err = dummydb.Open(); err != nil {
		fmt.Printf("dummydb.Open(): %v", err)
		os.Exit(1)
	}
	usrRepo = dummydb.NewUserRepository(db)
	batchRepo = dummydb.NewBatchRepository(db)
	attRepo = dummydb.NewAttendanceRepository(db)
	asgRepo = dummydb.NewAssignmentRepository(db)
	matRepo = dummydb.NewMaterialRepository(db)
	pmtRepo = dummydb.NewPaymentRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc)
	batchSvc := batch.NewService(batchRepo, usrSvc)
	attSvc := attendance.NewService(attRepo, batchSvc)

	fileStore, err := filesvc.NewLocalStorage(conf)
	if err != nil {
		fmt.Printf("filesvc.NewLocalStorage(): %v", err)
		os.Exit(1)
	}
	asgSvc := assignment.NewService(asgRepo, batchSvc, fileStore, *conf)
	matSvc := material.NewService(matRepo, batchSvc, fileStore, logger, *conf)
	pmtSvc := payment.NewService(pmtRepo, batchSvc, usrSvc, paymentsvc.NewDummyProvider(conf), mailSvc, *conf)
	batchSvc.AddDependents(attSvc, asgSvc, matSvc, pmtSvc)

	// set up server
	app = NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		BatchSvc:      batchSvc,
		AttendanceSvc: attSvc,
		AssignmentSvc: asgSvc,
		MaterialSvc:   matSvc,
		PaymentSvc:    pmtSvc,
		Files:         fileStore,
		Validate:      validate,
		Translator:    translator,
	})

	// run tests
	code := m.Run()

	// clean up
	_ = os.RemoveAll(uploadsDir)

	os.Exit(code)
}

// creates an admin, a teacher and a student, in that order
func createStaff(t *testing.T) (user.User, user.User, user.User) {
	t.Helper()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student", "student@test.cd", "", []string{user.RoleStudent}, true)
	return admin, teacher, student
}
