package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/duelboard/internal/adapters/http/api"
	"github.com/okian/duelboard/internal/adapters/repository"
	service "github.com/okian/duelboard/internal/app"
	"github.com/okian/duelboard/internal/domain/aggregate"
	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/internal/domain/stats"
	"github.com/okian/duelboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	ingested   []model.BatchReport
	validator  string
	result     service.IngestResult
	ingestErr  error
	view       service.AggregateView
	readErr    error
	lastLimit  int
	tiers      map[string]stats.TierReport
	validators []types.ValidatorInfo
}

func (m *mockDeps) Ingest(_ context.Context, _, validator string, batches []model.BatchReport) (service.IngestResult, error) {
	m.ingested = append(m.ingested, batches...)
	m.validator = validator
	return m.result, m.ingestErr
}

func (m *mockDeps) Aggregate(context.Context, string) (service.AggregateView, error) {
	return m.view, m.readErr
}

func (m *mockDeps) Ranking(_ context.Context, _ string, limit int) ([]types.Standing, error) {
	m.lastLimit = limit
	if m.readErr != nil {
		return nil, m.readErr
	}
	r := m.view.Ranking
	if limit < len(r) {
		r = r[:limit]
	}
	return r, nil
}

func (m *mockDeps) Availability(context.Context, string) ([]stats.Availability, error) {
	return nil, m.readErr
}

func (m *mockDeps) Tiers(_ context.Context, hotkey string) (stats.TierReport, error) {
	t, ok := m.tiers[hotkey]
	if !ok {
		return stats.TierReport{}, repository.ErrNotFound
	}
	return t, nil
}

func (m *mockDeps) Validators(context.Context) ([]types.ValidatorInfo, error) {
	return m.validators, m.readErr
}

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, api.WithMaxRankingLimit(10)).Register(mux)
	return mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const record = `{"timestamp":1700000000,"uid":{"0":1,"1":2},"rating_change":{"0":"1 -> 2","1":"2 -> 1"}}`

func TestPostReports(t *testing.T) {
	Convey("Given the reports endpoint", t, func() {
		deps := &mockDeps{result: service.IngestResult{Accepted: 1, BatchIDs: []string{"b-1"}}}
		mux := newMux(deps)

		Convey("An envelope is accepted with its validator", func() {
			rec := do(mux, http.MethodPost, "/reports", `{"validator":"hk1","reports":[`+record+`]}`)
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(deps.validator, ShouldEqual, "hk1")
			So(len(deps.ingested), ShouldEqual, 1)
			So(deps.ingested[0].UIDs["1"], ShouldEqual, model.ParticipantID("2"))

			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["status"], ShouldEqual, "accepted")
			So(body["accepted"], ShouldEqual, float64(1))
		})

		Convey("A bare array takes the validator from the query", func() {
			rec := do(mux, http.MethodPost, "/reports?validator=hk2", `[`+record+`,`+record+`]`)
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(deps.validator, ShouldEqual, "hk2")
			So(len(deps.ingested), ShouldEqual, 2)
		})

		Convey("All-duplicate submissions are acknowledged", func() {
			deps.result = service.IngestResult{Duplicates: 1}
			rec := do(mux, http.MethodPost, "/reports", `[`+record+`]`)
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(rec.Body.String(), ShouldContainSubstring, `"duplicate"`)
		})

		Convey("Queue rejections yield 429", func() {
			deps.result = service.IngestResult{Rejected: 1}
			rec := do(mux, http.MethodPost, "/reports", `[`+record+`]`)
			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("Malformed or empty bodies yield 400", func() {
			So(do(mux, http.MethodPost, "/reports", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/reports", `{"reports":[]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/reports", `[{"timestamp":1}]`).Code, ShouldEqual, http.StatusBadRequest)
			So(len(deps.ingested), ShouldEqual, 0)
		})

		Convey("A stopped service yields 503", func() {
			deps.ingestErr = service.ErrNotStarted
			rec := do(mux, http.MethodPost, "/reports", `[`+record+`]`)
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Other methods are not routed", func() {
			So(do(mux, http.MethodGet, "/reports", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given an aggregated snapshot", t, func() {
		battles := []model.Battle{
			{A: "uid_1", B: "uid_2", Winner: model.WinnerA},
			{A: "uid_1", B: "uid_2", Winner: model.WinnerA},
			{A: "uid_1", B: "uid_2", Winner: model.WinnerB},
		}
		deps := &mockDeps{
			view: service.AggregateView{Batches: 3, Discarded: 1, Result: aggregate.Aggregate(battles)},
			tiers: map[string]stats.TierReport{
				"hk1": {Hotkey: "hk1", Distribution: []stats.TierCount{{Tier: "gold", Count: 1}}},
			},
			validators: []types.ValidatorInfo{{Hotkey: "hk1", Name: "First"}},
		}
		mux := newMux(deps)

		Convey("GET /aggregate omits undefined fractions", func() {
			rec := do(mux, http.MethodGet, "/aggregate?validator=hk1", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Discarded    int                           `json:"discarded"`
				Counts       map[string]map[string]int     `json:"counts"`
				WinFractions map[string]map[string]float64 `json:"winFractions"`
				Participants []string                      `json:"participants"`
			}
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body.Discarded, ShouldEqual, 1)
			So(body.Counts["uid_1"]["uid_2"], ShouldEqual, 3)
			So(body.WinFractions["uid_2"]["uid_1"], ShouldAlmostEqual, 1.0/3.0, 1e-9)
			_, self := body.WinFractions["uid_1"]["uid_1"]
			So(self, ShouldBeFalse)
			So(body.Participants, ShouldResemble, []string{"uid_1", "uid_2"})
		})

		Convey("GET /aggregate uses camelCase field names", func() {
			rec := do(mux, http.MethodGet, "/aggregate?validator=hk1", "")
			var fields map[string]json.RawMessage
			So(json.Unmarshal(rec.Body.Bytes(), &fields), ShouldBeNil)
			So(fields, ShouldContainKey, "droppedEntries")
			So(fields, ShouldContainKey, "winFractions")
			So(fields, ShouldNotContainKey, "dropped_entries")
			So(fields, ShouldNotContainKey, "win_fractions")
		})

		Convey("GET /ranking validates limit", func() {
			So(do(mux, http.MethodGet, "/ranking?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/ranking?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/ranking?limit=11", "").Code, ShouldEqual, http.StatusBadRequest)

			rec := do(mux, http.MethodGet, "/ranking?limit=1", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 1)
			So(rec.Body.String(), ShouldContainSubstring, `"participantId":"uid_1"`)
			So(rec.Body.String(), ShouldNotContainSubstring, "uid_2")
		})

		Convey("GET /ranking without limit uses the maximum", func() {
			So(do(mux, http.MethodGet, "/ranking", "").Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 10)
		})

		Convey("GET /validators lists names", func() {
			rec := do(mux, http.MethodGet, "/validators", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"name":"First"`)
		})

		Convey("GET /validators/{hotkey}/tiers maps missing metadata to 404", func() {
			So(do(mux, http.MethodGet, "/validators/hk1/tiers", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodGet, "/validators/hk9/tiers", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("GET /availability returns an empty list, never null", func() {
			rec := do(mux, http.MethodGet, "/availability", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(rec.Body.String()), ShouldEqual, "[]")
		})

		Convey("Unexpected read errors yield 500", func() {
			deps.readErr = errors.New("boom")
			So(do(mux, http.MethodGet, "/aggregate", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		mux := newMux(&mockDeps{})

		Convey("GET /healthz reports ok", func() {
			rec := do(mux, http.MethodGet, "/healthz", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("GET /stats returns the provider's map", func() {
			rec := do(mux, http.MethodGet, "/stats", "")
			So(rec.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("GET /metrics exposes recorded HTTP requests", func() {
			_ = do(mux, http.MethodGet, "/healthz", "")
			rec := do(mux, http.MethodGet, "/metrics", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "duelboard_")
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given a kind-wrapped error", t, func() {
		cause := errors.New("bad limit")
		err := api.WrapKind("api.get_ranking", api.ErrBadRequest, cause)

		Convey("Then both kind and cause are matchable", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.get_ranking: bad request: bad limit")
		})

		Convey("Then Wrap of nil is nil", func() {
			So(api.Wrap("op", nil), ShouldBeNil)
		})
	})
}
