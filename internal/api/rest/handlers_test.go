package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/report"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	evalsvc "github.com/itrc/evaluation-workflow/internal/service/evaluation"
	"github.com/itrc/evaluation-workflow/internal/service/intake"
	stsvc "github.com/itrc/evaluation-workflow/internal/service/securitytarget"
)

var (
	applicant  = authz.Actor{ID: uuid.MustParse("00000000-0000-0000-0000-00000000a001"), Role: authz.RoleApplicant}
	evaluator  = authz.Actor{ID: uuid.MustParse("00000000-0000-0000-0000-00000000e001"), Role: authz.RoleEvaluator}
	supervisor = authz.Actor{ID: uuid.MustParse("00000000-0000-0000-0000-00000000d001"), Role: authz.RoleSupervisor}
)

type testServer struct {
	handler http.Handler
	mocks   *MockServices
	auth    *Authenticator
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mocks := NewMockServices()
	auth := NewAuthenticator(AuthConfig{
		JWTSecret:   []byte("test-secret"),
		Issuer:      "itrc-evaluation",
		TokenExpiry: time.Hour,
	}, nil)
	handler := NewRouter(Dependencies{
		Logger:          discardLogger(),
		Auth:            auth,
		Catalog:         mocks.Catalog,
		Applications:    mocks.Applications,
		SecurityTargets: mocks.SecurityTargets,
		Evaluations:     mocks.Evaluations,
		Reports:         mocks.Reports,
		Health:          NewHealthHandler("test", "test", nil),
	})
	return &testServer{handler: handler, mocks: mocks, auth: auth}
}

func (s *testServer) token(t *testing.T, actor authz.Actor) string {
	t.Helper()
	tok, err := s.auth.GenerateToken(actor, "Test User")
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, actor *authz.Actor, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, *actor))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorResponse  `json:"error"`
	Meta    ResponseMeta    `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func validApplicationBody() map[string]interface{} {
	return map[string]interface{}{
		"product_name":     "SecureShield Antimalware Pro",
		"product_version":  "4.2",
		"product_type_id":  catalog.ProductTypeID("ANTIMALWARE").String(),
		"evaluation_level": "EAL2",
		"company_name":     "Shield Labs",
		"contact_person":   "Ali Applicant",
		"contact_email":    "ali@shieldlabs.example",
	}
}

func TestRouter_Authentication(t *testing.T) {
	s := newTestServer(t)

	t.Run("missing token", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/applications", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, `Bearer realm="api"`, rec.Header().Get("WWW-Authenticate"))
		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("health is public", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/nope", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestCatalogHandler(t *testing.T) {
	s := newTestServer(t)
	ptID := catalog.ProductTypeID("ANTIMALWARE")
	classID := catalog.ClassID("FAM_NET")
	subID := catalog.SubclassID("FAM_NET.1")

	s.mocks.Catalog.On("ProductTypes").Return([]catalog.ProductType{{ID: ptID, Code: "ANTIMALWARE", NameEn: "Antimalware"}})
	s.mocks.Catalog.On("Classes", ptID).Return([]catalog.Class{{ID: classID, Code: "FAM_NET", ProductTypeID: ptID}}, nil)
	s.mocks.Catalog.On("Classes", mock.Anything).Return(nil, apperrors.NewNotFoundError("product type"))
	s.mocks.Catalog.On("Help", classID, &subID).Return(catalog.Help{ClassID: classID, SubclassID: &subID, TextEn: "check the network filter"}, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/catalog/product-types", &applicant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var types []catalog.ProductType
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &types))
	assert.Len(t, types, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/catalog/product-types/"+ptID.String()+"/classes", &applicant, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/catalog/product-types/"+uuid.NewString()+"/classes", &applicant, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/catalog/product-types/not-a-uuid/classes", &applicant, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decodeEnvelope(t, rec).Error.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/catalog/help/"+classID.String()+"?subclass_id="+subID.String(), &evaluator, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "check the network filter")
}

func TestApplicationHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		setupMocks func(m *MockServices)
		wantStatus int
		wantCode   string
		wantFields []string
	}{
		{
			name: "created",
			body: validApplicationBody(),
			setupMocks: func(m *MockServices) {
				m.Applications.On("Create", mock.Anything, applicant, mock.MatchedBy(func(d application.Details) bool {
					return d.ProductName == "SecureShield Antimalware Pro" && d.ContactEmail == "ali@shieldlabs.example"
				})).Return(&application.Application{ID: uuid.New(), Number: "APP-2025-0001"}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "missing required fields",
			body: map[string]interface{}{"product_name": "X", "contact_email": "nope"},
			setupMocks: func(m *MockServices) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantFields: []string{"product_type_id", "company_name", "contact_person", "contact_email"},
		},
		{
			name: "unknown field",
			body: func() map[string]interface{} {
				b := validApplicationBody()
				b["priority"] = "high"
				return b
			}(),
			setupMocks: func(m *MockServices) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "malformed json",
			body:       `{"product_name":`,
			setupMocks: func(m *MockServices) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "empty body",
			body:       "",
			setupMocks: func(m *MockServices) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMPTY_BODY",
		},
		{
			name: "forbidden for role",
			body: validApplicationBody(),
			setupMocks: func(m *MockServices) {
				m.Applications.On("Create", mock.Anything, applicant, mock.Anything).
					Return(nil, apperrors.NewForbiddenError("role may not create applications"))
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMocks(s.mocks)

			rec := s.do(t, http.MethodPost, "/api/v1/applications", &applicant, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			if tt.wantCode != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantCode, env.Error.Code)
				for _, f := range tt.wantFields {
					assert.Contains(t, env.Error.Fields, f)
				}
			} else {
				assert.True(t, env.Success)
			}
			s.mocks.AssertExpectations(t)
		})
	}
}

func TestApplicationHandler_List(t *testing.T) {
	t.Run("status and paging", func(t *testing.T) {
		s := newTestServer(t)
		submitted := application.StatusSubmitted
		s.mocks.Applications.On("List", mock.Anything, evaluator, intake.ListRequest{Status: &submitted, Limit: 10, Offset: 20}).
			Return([]*application.Application{{ID: uuid.New()}}, nil)

		rec := s.do(t, http.MethodGet, "/api/v1/applications?status=submitted&limit=10&offset=20", &evaluator, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("invalid status", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodGet, "/api/v1/applications?status=lost", &evaluator, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_APPLICATION_STATUS", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("negative limit", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodGet, "/api/v1/applications?limit=-1", &evaluator, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestApplicationHandler_Stats(t *testing.T) {
	s := newTestServer(t)
	mine := 3
	s.mocks.Applications.On("DashboardStats", mock.Anything, applicant).
		Return(&intake.DashboardStats{TotalApplications: 3, MyApplications: &mine, ByStatus: map[string]int{"DRAFT": 3}}, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/applications/stats", &applicant, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats intake.DashboardStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
	assert.Equal(t, 3, stats.TotalApplications)
	require.NotNil(t, stats.MyApplications)
	assert.Equal(t, 3, *stats.MyApplications)
}

func TestApplicationHandler_SecurityTarget(t *testing.T) {
	appID := uuid.New()
	stID := uuid.New()
	classID := catalog.ClassID("FAM_NET")

	t.Run("get or create", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.SecurityTargets.On("GetOrCreate", mock.Anything, applicant, appID).
			Return(&securitytarget.SecurityTarget{ID: stID, ApplicationID: appID, Version: "1.0"}, nil)

		rec := s.do(t, http.MethodGet, "/api/v1/applications/"+appID.String()+"/security-target", &applicant, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("update descriptions", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.SecurityTargets.On("UpdateDescriptions", mock.Anything, applicant, stsvc.DescriptionsRequest{
			ApplicationID:      appID,
			ProductDescription: "endpoint protection",
			TOEDescription:     "agent and console",
		}).Return(&securitytarget.SecurityTarget{ID: stID}, nil)

		rec := s.do(t, http.MethodPut, "/api/v1/applications/"+appID.String()+"/security-target", &applicant, map[string]string{
			"product_description": "endpoint protection",
			"toe_description":     "agent and console",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("upsert selection", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.SecurityTargets.On("UpsertSelection", mock.Anything, applicant, stsvc.SelectionRequest{
			ApplicationID: appID,
			ClassID:       classID,
			Content:       securitytarget.Content{Description: "blocks inbound scans"},
		}).Return(&securitytarget.ClassSelection{ID: uuid.New(), ClassID: classID}, nil)

		rec := s.do(t, http.MethodPost, "/api/v1/applications/"+appID.String()+"/security-target/selections", &applicant, map[string]string{
			"class_id":    classID.String(),
			"description": "blocks inbound scans",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("selection requires description", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodPost, "/api/v1/applications/"+appID.String()+"/security-target/selections", &applicant, map[string]string{
			"class_id": classID.String(),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeEnvelope(t, rec).Error.Fields, "description")
	})

	t.Run("submit resolves the target of the application", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.SecurityTargets.On("Get", mock.Anything, applicant, appID).
			Return(&securitytarget.SecurityTarget{ID: stID, ApplicationID: appID}, nil)
		s.mocks.SecurityTargets.On("Submit", mock.Anything, applicant, stID).
			Return(&securitytarget.SecurityTarget{ID: stID, Status: securitytarget.StatusSubmitted}, nil)

		rec := s.do(t, http.MethodPost, "/api/v1/applications/"+appID.String()+"/security-target/submit", &applicant, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("submit without selections", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.SecurityTargets.On("Get", mock.Anything, applicant, appID).
			Return(&securitytarget.SecurityTarget{ID: stID, ApplicationID: appID}, nil)
		s.mocks.SecurityTargets.On("Submit", mock.Anything, applicant, stID).
			Return(nil, apperrors.NewValidationError("NO_CLASS_SELECTIONS", "select at least one class"))

		rec := s.do(t, http.MethodPost, "/api/v1/applications/"+appID.String()+"/security-target/submit", &applicant, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "NO_CLASS_SELECTIONS", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("remove selection", func(t *testing.T) {
		s := newTestServer(t)
		selID := uuid.New()
		s.mocks.SecurityTargets.On("RemoveSelection", mock.Anything, applicant, selID).Return(nil)

		rec := s.do(t, http.MethodDelete, "/api/v1/selections/"+selID.String(), &applicant, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestEvaluationHandler(t *testing.T) {
	appID := uuid.New()
	evalID := uuid.New()

	t.Run("create with explicit evaluator", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Evaluations.On("CreateEvaluation", mock.Anything, supervisor, appID, &evaluator.ID).
			Return(&evaluation.Evaluation{ID: evalID, ApplicationID: appID, EvaluatorID: evaluator.ID}, nil)

		rec := s.do(t, http.MethodPost, "/api/v1/evaluations", &supervisor, map[string]string{
			"application_id": appID.String(),
			"evaluator_id":   evaluator.ID.String(),
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("duplicate evaluation", func(t *testing.T) {
		s := newTestServer(t)
		conflict := apperrors.NewConflictError("an evaluation already exists")
		conflict.Code = "EVALUATION_EXISTS"
		s.mocks.Evaluations.On("CreateEvaluation", mock.Anything, evaluator, appID, (*uuid.UUID)(nil)).Return(nil, conflict)

		rec := s.do(t, http.MethodPost, "/api/v1/evaluations", &evaluator, map[string]string{"application_id": appID.String()})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "EVALUATION_EXISTS", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("list filters by status", func(t *testing.T) {
		s := newTestServer(t)
		inProgress := evaluation.StatusInProgress
		s.mocks.Evaluations.On("List", mock.Anything, evaluator, &inProgress).Return([]*evaluation.Evaluation{}, nil)

		rec := s.do(t, http.MethodGet, "/api/v1/evaluations?status=in_progress", &evaluator, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("patch checklist", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Evaluations.On("Update", mock.Anything, evaluator, evalID, mock.MatchedBy(func(req evalsvc.UpdateRequest) bool {
			return req.Checklist.DocumentReview != nil && *req.Checklist.DocumentReview &&
				req.Checklist.SecurityTesting == nil && req.Findings != nil && *req.Findings == "none"
		})).Return(&evaluation.Evaluation{ID: evalID}, nil)

		rec := s.do(t, http.MethodPatch, "/api/v1/evaluations/"+evalID.String(), &evaluator, map[string]interface{}{
			"document_review_completed": true,
			"findings":                  "none",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("assign", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Evaluations.On("AssignEvaluator", mock.Anything, supervisor, evalID, evaluator.ID).
			Return(&evaluation.Evaluation{ID: evalID, EvaluatorID: evaluator.ID}, nil)

		rec := s.do(t, http.MethodPost, "/api/v1/evaluations/"+evalID.String()+"/assign", &supervisor, map[string]string{
			"evaluator_id": evaluator.ID.String(),
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("complete before checklist", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Evaluations.On("CompleteEvaluation", mock.Anything, evaluator, evalID).
			Return(nil, apperrors.NewPreconditionError("CHECKLIST_INCOMPLETE", "all checklist items must be completed"))

		rec := s.do(t, http.MethodPost, "/api/v1/evaluations/"+evalID.String()+"/complete", &evaluator, nil)
		assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
		assert.Equal(t, "CHECKLIST_INCOMPLETE", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("score", func(t *testing.T) {
		s := newTestServer(t)
		score := decimal.RequireFromString("82")
		s.mocks.Evaluations.On("AggregateScore", mock.Anything, evaluator, evalID).Return(&score, nil)

		rec := s.do(t, http.MethodGet, "/api/v1/evaluations/"+evalID.String()+"/score", &evaluator, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ScoreResponse
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
		require.NotNil(t, resp.Score)
		assert.True(t, resp.Score.Equal(score))
	})

	t.Run("score absent", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Evaluations.On("AggregateScore", mock.Anything, evaluator, evalID).Return(nil, nil)

		rec := s.do(t, http.MethodGet, "/api/v1/evaluations/"+evalID.String()+"/score", &evaluator, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"score":null`)
	})

	t.Run("by application", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Evaluations.On("GetByApplication", mock.Anything, applicant, appID).
			Return(nil, apperrors.NewNotFoundError("evaluation"))

		rec := s.do(t, http.MethodGet, "/api/v1/applications/"+appID.String()+"/evaluation", &applicant, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestEvaluationHandler_RecordClassEvaluation(t *testing.T) {
	selID := uuid.New()

	tests := []struct {
		name       string
		body       string
		setupMocks func(m *MockServices)
		wantStatus int
		wantCode   string
	}{
		{
			name: "score as string",
			body: `{"evaluation_status":"pass","evaluation_score":"85.5","evaluator_notes":"ok"}`,
			setupMocks: func(m *MockServices) {
				m.Evaluations.On("RecordClassEvaluation", mock.Anything, evaluator, selID, mock.MatchedBy(func(req evalsvc.ClassEvaluationRequest) bool {
					return req.Status == securitytarget.EvaluationPass && req.Score != nil &&
						req.Score.Equal(decimal.RequireFromString("85.5")) && req.Notes == "ok"
				})).Return(&securitytarget.ClassSelection{ID: selID}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "score as number without notes",
			body: `{"evaluation_status":"fail","evaluation_score":40}`,
			setupMocks: func(m *MockServices) {
				m.Evaluations.On("RecordClassEvaluation", mock.Anything, evaluator, selID, mock.MatchedBy(func(req evalsvc.ClassEvaluationRequest) bool {
					return req.Status == securitytarget.EvaluationFail && req.Score.Equal(decimal.NewFromInt(40))
				})).Return(&securitytarget.ClassSelection{ID: selID}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown status",
			body:       `{"evaluation_status":"great"}`,
			setupMocks: func(m *MockServices) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_EVALUATION_STATUS",
		},
		{
			name: "score out of range",
			body: `{"evaluation_status":"pass","evaluation_score":120}`,
			setupMocks: func(m *MockServices) {
				m.Evaluations.On("RecordClassEvaluation", mock.Anything, evaluator, selID, mock.Anything).
					Return(nil, apperrors.NewValidationError("INVALID_SCORE", "score must be between 0 and 100"))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_SCORE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMocks(s.mocks)

			rec := s.do(t, http.MethodPost, "/api/v1/selections/"+selID.String()+"/evaluation", &evaluator, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeEnvelope(t, rec).Error.Code)
			}
			s.mocks.AssertExpectations(t)
		})
	}
}

func TestReportHandler(t *testing.T) {
	evalID := uuid.New()
	reportID := uuid.New()

	t.Run("generate with default title", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Reports.On("Generate", mock.Anything, evaluator, evalID, "").
			Return(&report.TechnicalReport{ID: reportID, ReportNumber: "ITRC-ETR-2025-0001"}, nil)

		rec := s.do(t, http.MethodPost, "/api/v1/evaluations/"+evalID.String()+"/reports", &evaluator, nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), "ITRC-ETR-2025-0001")
		s.mocks.AssertExpectations(t)
	})

	t.Run("generate with title", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Reports.On("Generate", mock.Anything, evaluator, evalID, "Final ETR").
			Return(&report.TechnicalReport{ID: reportID}, nil)

		rec := s.do(t, http.MethodPost, "/api/v1/evaluations/"+evalID.String()+"/reports", &evaluator, map[string]string{"title": "Final ETR"})
		assert.Equal(t, http.StatusCreated, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("list with status", func(t *testing.T) {
		s := newTestServer(t)
		approved := report.StatusApproved
		s.mocks.Reports.On("ListForActor", mock.Anything, governance(), &approved).Return([]*report.TechnicalReport{}, nil)

		g := governance()
		rec := s.do(t, http.MethodGet, "/api/v1/reports?status=approved", &g, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("pending review queue", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Reports.On("ListPending", mock.Anything, supervisor).Return([]*report.TechnicalReport{{ID: reportID}}, nil)

		rec := s.do(t, http.MethodGet, "/api/v1/reports/pending-review", &supervisor, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("submit", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Reports.On("SubmitForReview", mock.Anything, evaluator, reportID).
			Return(&report.TechnicalReport{ID: reportID, Status: report.StatusSupervisorReview}, nil)

		rec := s.do(t, http.MethodPost, "/api/v1/reports/"+reportID.String()+"/submit", &evaluator, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("review accepts any casing", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Reports.On("Review", mock.Anything, supervisor, reportID, "approved", "well done").
			Return(&report.TechnicalReport{ID: reportID, Status: report.StatusApproved}, nil)

		rec := s.do(t, http.MethodPost, "/api/v1/reports/"+reportID.String()+"/review", &supervisor, map[string]string{
			"decision": "approved",
			"comments": "well done",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		s.mocks.AssertExpectations(t)
	})

	t.Run("review rejects unknown decision", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodPost, "/api/v1/reports/"+reportID.String()+"/review", &supervisor, map[string]string{
			"decision": "MAYBE",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Equal(t, "must be APPROVED, NEEDS_REVISION or REJECTED", env.Error.Fields["decision"])
	})

	t.Run("download markdown", func(t *testing.T) {
		s := newTestServer(t)
		content := "# Evaluation Technical Report\n"
		s.mocks.Reports.On("OpenArtifact", mock.Anything, applicant, reportID).Return(
			io.NopCloser(strings.NewReader(content)),
			report.Artifact{Path: "2025/ITRC-ETR-2025-0001.md", Size: int64(len(content)), Format: "markdown"},
			nil,
		)

		rec := s.do(t, http.MethodGet, "/api/v1/reports/"+reportID.String()+"/download", &applicant, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="ITRC-ETR-2025-0001.md"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, content, rec.Body.String())
	})

	t.Run("download forbidden", func(t *testing.T) {
		s := newTestServer(t)
		s.mocks.Reports.On("OpenArtifact", mock.Anything, applicant, reportID).
			Return(nil, report.Artifact{}, apperrors.NewForbiddenError("not your report"))

		rec := s.do(t, http.MethodGet, "/api/v1/reports/"+reportID.String()+"/download", &applicant, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})
}

func governance() authz.Actor {
	return authz.Actor{ID: uuid.MustParse("00000000-0000-0000-0000-00000000f001"), Role: authz.RoleGovernance}
}
