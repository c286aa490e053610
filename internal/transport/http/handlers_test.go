package httptransport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"consentry/internal/audit"
	"consentry/internal/decision"
	"consentry/internal/decision/adapters"
	decisionmetrics "consentry/internal/decision/metrics"
	"consentry/internal/ledger"
	"consentry/internal/policy"
	"consentry/internal/preference"
	"consentry/internal/request"
	"consentry/internal/retention"
	"consentry/internal/subject"
	id "consentry/pkg/domain"
	"consentry/pkg/platform/tx"
	"consentry/pkg/testutil"
)

const adminKey = "handler-test-signing-key"

type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	subjects *subject.InMemoryStore
	audits   *audit.InMemoryStore
	policies *policy.Service
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.subjects = subject.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()
	publisher := audit.NewPublisher(s.audits, audit.WithLogger(logger))

	subjectSvc := subject.NewService(s.subjects, publisher)
	ledgerSvc := ledger.NewService(ledger.NewInMemoryStore(), publisher, tx.NoopRunner{}, logger)
	s.policies = policy.NewService(policy.NewInMemoryStore(), nil, publisher, logger)
	preferenceSvc := preference.NewService(ledgerSvc, logger)

	resolver, err := adapters.NewPrefixResolver(map[string]string{"10.0.0.0/8": "eu"}, id.JurisdictionRestOfWorld)
	s.Require().NoError(err)
	decisionSvc := decision.NewService(
		subjectSvc, s.policies, ledgerSvc, resolver, publisher,
		decisionmetrics.NewWith(prometheus.NewRegistry()), logger,
	)

	retentionSvc := retention.NewService(
		retention.NewInMemoryRuleStore(), retention.NewInMemoryJobStore(),
		ledger.NewInMemoryStore(), s.subjects, request.NewInMemoryStore(), publisher, nil, logger,
	)
	requestSvc := request.NewService(request.NewInMemoryStore(), subjectSvc, s.subjects, publisher, tx.NoopRunner{}, logger)

	s.router = NewRouter(Handlers{
		Subjects:    NewSubjectHandler(subjectSvc, logger),
		Consents:    NewConsentHandler(ledgerSvc, logger),
		Preferences: NewPreferenceHandler(preferenceSvc, logger),
		Decisions:   NewDecisionHandler(decisionSvc, logger),
		Policies:    NewPolicyHandler(s.policies, logger),
		Requests:    NewRequestHandler(requestSvc, logger),
		Admin:       NewAdminHandler(retentionSvc, s.audits, logger),
	}, []byte(adminKey))
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *HandlerSuite) adminToken() string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops@example.com",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(adminKey))
	s.Require().NoError(err)
	return signed
}

func (s *HandlerSuite) adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.adminToken()}
}

func (s *HandlerSuite) createSubject(email string) string {
	rec := s.do(http.MethodPost, "/v1/subjects", map[string]string{
		"email":  email,
		"region": "eu",
	}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return s.decode(rec)["id"].(string)
}

func (s *HandlerSuite) TestSubjectLifecycle() {
	s.Run("create and fetch", func() {
		subjectID := s.createSubject("ada@example.com")

		rec := s.do(http.MethodGet, "/v1/subjects/"+subjectID, nil, nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("ada@example.com", s.decode(rec)["email"])
	})

	s.Run("duplicate email conflicts", func() {
		rec := s.do(http.MethodPost, "/v1/subjects", map[string]string{"email": "ada@example.com"}, nil)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("conflict", s.decode(rec)["error"])
	})

	s.Run("unknown subject is 404", func() {
		rec := s.do(http.MethodGet, "/v1/subjects/"+id.NewSubjectID().String(), nil, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed id is 400", func() {
		rec := s.do(http.MethodGet, "/v1/subjects/not-a-uuid", nil, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestConsentEndpoints() {
	subjectID := s.createSubject("consent@example.com")
	base := "/v1/subjects/" + subjectID + "/consents"

	s.Run("grant", func() {
		rec := s.do(http.MethodPost, base, map[string]any{
			"purpose":      "analytics",
			"legal_basis":  "consent",
			"status":       "granted",
			"jurisdiction": "eu",
		}, map[string]string{"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) Firefox/140.0"})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
		body := s.decode(rec)
		s.Equal("granted", body["status"])
		s.Equal("web", body["source"], "source derived from User-Agent")
	})

	s.Run("status reads granted", func() {
		rec := s.do(http.MethodGet, base+"/analytics/status", nil, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("granted", s.decode(rec)["status"])
	})

	s.Run("invalid payload is 400", func() {
		rec := s.do(http.MethodPost, base, map[string]any{
			"purpose": "analytics",
			"status":  "perhaps",
		}, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("revoke", func() {
		rec := s.do(http.MethodPost, base+"/revoke", map[string]string{"purpose": "analytics"}, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("revoked", s.decode(rec)["status"])
	})

	s.Run("revoking again is a state conflict", func() {
		rec := s.do(http.MethodPost, base+"/revoke", map[string]string{"purpose": "analytics"}, nil)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("invalid_state", s.decode(rec)["error"])
	})

	s.Run("history lists both records", func() {
		rec := s.do(http.MethodGet, base+"?purpose=analytics", nil, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Len(s.decode(rec)["consents"], 2)
	})
}

func (s *HandlerSuite) TestPreferenceEndpoints() {
	subjectID := s.createSubject("prefs@example.com")
	path := "/v1/subjects/" + subjectID + "/preferences"

	rec := s.do(http.MethodGet, path, nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, path, map[string]any{
		"jurisdiction": "eu",
		"purposes":     map[string]string{"analytics": "granted", "marketing": "denied"},
	}, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	purposes := s.decode(rec)["purposes"].(map[string]any)
	s.Equal("granted", purposes["analytics"])
	s.Equal("denied", purposes["marketing"])
}

func (s *HandlerSuite) TestDecisionEndpoint() {
	subjectID := s.createSubject("decide@example.com")

	rec := s.do(http.MethodPost, "/v1/subjects/"+subjectID+"/consents", map[string]any{
		"purpose":      "marketing",
		"legal_basis":  "consent",
		"status":       "granted",
		"jurisdiction": "eu",
	}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	s.Run("grant carries the decision", func() {
		rec := s.do(http.MethodPost, "/v1/decisions/evaluate", map[string]string{
			"subject_id": subjectID,
			"purpose":    "marketing",
		}, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		body := s.decode(rec)
		s.Equal(true, body["allowed"])
		s.Equal("consent", body["source"])
		s.NotEmpty(body["consent_record_id"])
	})

	s.Run("denial is a 200 with allowed=false", func() {
		rec := s.do(http.MethodPost, "/v1/decisions/evaluate", map[string]string{
			"subject_id":   subjectID,
			"purpose":      "profiling",
			"jurisdiction": "eu",
		}, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal(false, s.decode(rec)["allowed"])
	})

	s.Run("unknown subject is an error, not a deny", func() {
		rec := s.do(http.MethodPost, "/v1/decisions/evaluate", map[string]string{
			"subject_id": id.NewSubjectID().String(),
			"purpose":    "marketing",
		}, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestPolicyEndpoints() {
	s.Run("creation requires the admin token", func() {
		rec := s.do(http.MethodPost, "/v1/admin/policies", map[string]string{
			"jurisdiction": "eu", "name": "GDPR baseline",
		}, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	var policyID string
	s.Run("create and publish", func() {
		rec := s.do(http.MethodPost, "/v1/admin/policies", map[string]string{
			"jurisdiction": "eu", "name": "GDPR baseline",
		}, s.adminHeaders())
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
		policyID = s.decode(rec)["id"].(string)

		rec = s.do(http.MethodPost, fmt.Sprintf("/v1/admin/policies/%s/versions", policyID), map[string]any{
			"effective_from": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
			"matrix": map[string]any{
				"rules": []map[string]any{
					{"purpose": "essential", "allowed_without_consent": true, "required_basis": "legitimate_interest"},
				},
			},
		}, s.adminHeaders())
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
		s.EqualValues(1, s.decode(rec)["number"])
	})

	s.Run("applicable lookup is public", func() {
		rec := s.do(http.MethodGet, "/v1/policies/applicable?jurisdiction=eu", nil, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal(policyID, s.decode(rec)["policy_id"])
	})

	s.Run("no applicable version is 404", func() {
		rec := s.do(http.MethodGet, "/v1/policies/applicable?jurisdiction=us-ca", nil, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestRequestEndpoints() {
	subjectID := s.createSubject("dsr@example.com")
	base := "/v1/subjects/" + subjectID + "/requests"

	rec := s.do(http.MethodPost, base, map[string]string{"kind": "export"}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	requestID := s.decode(rec)["id"].(string)
	s.Equal("pending", s.decode(rec)["status"])

	s.Run("completion is admin-only", func() {
		rec := s.do(http.MethodPost, "/v1/requests/"+requestID+"/complete", nil, nil)
		s.Equal(http.StatusNotFound, rec.Code, "admin route is not mounted publicly")

		rec = s.do(http.MethodPost, "/v1/admin/requests/"+requestID+"/complete", nil, s.adminHeaders())
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("completed", s.decode(rec)["status"])
	})

	s.Run("listing shows the completed request", func() {
		rec := s.do(http.MethodGet, base, nil, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Len(s.decode(rec)["requests"], 1)
	})
}

func (s *HandlerSuite) TestAdminEndpoints() {
	s.Run("retention run and job listing", func() {
		rec := s.do(http.MethodPost, "/v1/admin/retention/run", nil, s.adminHeaders())
		s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
		s.Equal("completed", s.decode(rec)["status"])

		rec = s.do(http.MethodGet, "/v1/admin/retention/jobs?limit=5", nil, s.adminHeaders())
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Len(s.decode(rec)["jobs"], 1)
	})

	s.Run("rule creation validates input", func() {
		rec := s.do(http.MethodPost, "/v1/admin/retention/rules", map[string]any{
			"entity_type": "invoices", "period_days": 30,
		}, s.adminHeaders())
		s.Equal(http.StatusBadRequest, rec.Code)

		rec = s.do(http.MethodPost, "/v1/admin/retention/rules", map[string]any{
			"entity_type": "consent_record", "period_days": 365, "active": true,
		}, s.adminHeaders())
		s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	})

	s.Run("audit trail is queryable", func() {
		s.createSubject("audited@example.com")

		rec := s.do(http.MethodGet, "/v1/admin/audit/events?type=subject_created", nil, s.adminHeaders())
		s.Require().Equal(http.StatusOK, rec.Code)
		events := s.decode(rec)["events"].([]any)
		s.NotEmpty(events)
	})

	s.Run("non-admin token is rejected", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user@example.com", "role": "viewer",
		})
		signed, err := token.SignedString([]byte(adminKey))
		s.Require().NoError(err)

		rec := s.do(http.MethodGet, "/v1/admin/retention/rules", nil,
			map[string]string{"Authorization": "Bearer " + signed})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}
