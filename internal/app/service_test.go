package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/duelboard/internal/adapters/repository"
	service "github.com/okian/duelboard/internal/app"
	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/pkg/logger"
	"github.com/okian/duelboard/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func batch(ts float64, a, b model.ParticipantID, ra, rb model.RawRatingChange) model.BatchReport {
	return model.BatchReport{
		Timestamp:     ts,
		UIDs:          map[string]model.ParticipantID{"0": a, "1": b},
		RatingChanges: map[string]model.RawRatingChange{"0": ra, "1": rb},
	}
}

func waitStored(svc *service.Service, n int64) {
	deadline := time.Now().Add(5 * time.Second)
	for svc.Stored() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

func startService(opts ...service.Option) *service.Service {
	svc := service.New(append([]service.Option{service.WithWorkerCount(2), service.WithQueueSize(128)}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func participantLabels() map[string]bool {
	out := map[string]bool{}
	families, err := metrics.GetRegistry().Gather()
	So(err, ShouldBeNil)
	for _, mf := range families {
		if mf.GetName() != "duelboard_participants" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "validator" {
					out[l.GetValue()] = true
				}
			}
		}
	}
	return out
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		Convey("Then operations report ErrNotStarted", func() {
			_, err := svc.Ingest(ctx, "api", "", []model.BatchReport{{}})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Aggregate(ctx, "")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("Then Stop is a no-op", func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("Given a started service", t, func() {
		svc := startService()

		Convey("Start is idempotent and Stop marks it stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("An empty ingest is refused", func() {
			_, err := svc.Ingest(ctx, "api", "", nil)
			So(errors.Is(err, service.ErrNoBatches), ShouldBeTrue)
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestService_IngestAndAggregate(t *testing.T) {
	ctx := context.Background()

	Convey("Given three batches between uid_1 and uid_2", t, func() {
		svc := startService(service.WithCacheTTL(time.Minute))
		defer func() { _ = svc.Stop(ctx) }()

		batches := []model.BatchReport{
			batch(1, "uid_1", "uid_2", "1000 -> 1010", "1000 -> 990"),
			batch(2, "uid_1", "uid_2", "1010 -> 1020", "990 -> 980"),
			batch(3, "uid_1", "uid_2", "1020 -> 1000", "980 -> 1000"),
		}

		res, err := svc.Ingest(ctx, "api", "hk1", batches)
		So(err, ShouldBeNil)
		So(res.Accepted, ShouldEqual, 3)
		So(len(res.BatchIDs), ShouldEqual, 3)
		waitStored(svc, 3)

		Convey("Then the aggregate reflects every battle", func() {
			view, err := svc.Aggregate(ctx, "hk1")
			So(err, ShouldBeNil)
			So(view.Batches, ShouldEqual, 3)
			So(view.Battles, ShouldEqual, 3)
			So(view.Discarded, ShouldEqual, 0)
			So(view.Counts.Get("uid_1", "uid_2"), ShouldEqual, 3)
			f := view.WinFractions.Get("uid_1", "uid_2")
			So(f.Defined, ShouldBeTrue)
			So(f.Value, ShouldAlmostEqual, 2.0/3.0, 1e-9)
			So(view.Participants, ShouldResemble, []model.ParticipantID{"uid_1", "uid_2"})
		})

		Convey("Then the all-validator scope sees the same batches", func() {
			view, err := svc.Aggregate(ctx, "")
			So(err, ShouldBeNil)
			So(view.Battles, ShouldEqual, 3)
		})

		Convey("Then an unknown validator aggregates to nothing", func() {
			view, err := svc.Aggregate(ctx, "nobody")
			So(err, ShouldBeNil)
			So(view.Battles, ShouldEqual, 0)
			So(len(view.Ranking), ShouldEqual, 0)
		})

		Convey("When the same batches arrive again", func() {
			again, err := svc.Ingest(ctx, "upstream", "hk1", batches[:1])
			So(err, ShouldBeNil)

			Convey("Then they are acknowledged as duplicates", func() {
				So(again.Accepted, ShouldEqual, 0)
				So(again.Duplicates, ShouldEqual, 1)
			})
		})

		Convey("When a new batch is stored after a cached aggregation", func() {
			first, err := svc.Aggregate(ctx, "hk1")
			So(err, ShouldBeNil)
			_, err = svc.Ingest(ctx, "api", "hk1", []model.BatchReport{
				batch(4, "uid_1", "uid_2", "N/A", "1000 -> 1001"),
			})
			So(err, ShouldBeNil)
			waitStored(svc, 4)

			Convey("Then the cached result is not reused", func() {
				second, err := svc.Aggregate(ctx, "hk1")
				So(err, ShouldBeNil)
				So(first.Batches, ShouldEqual, 3)
				So(second.Batches, ShouldEqual, 4)
				So(second.Discarded, ShouldEqual, 1)
				So(second.DroppedEntries, ShouldEqual, 1)
			})

			Convey("Then availability counts the invalid entry", func() {
				rows, err := svc.Availability(ctx, "hk1")
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[0].ParticipantID, ShouldEqual, model.ParticipantID("uid_1"))
				So(rows[0].Invalid, ShouldEqual, 1)
				So(rows[0].InvalidRate, ShouldAlmostEqual, 0.25, 1e-9)
			})
		})

		Convey("Then Ranking honours the limit", func() {
			all, err := svc.Ranking(ctx, "hk1", 0)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 2)
			So(all[0].ParticipantID, ShouldEqual, model.ParticipantID("uid_1"))
			So(all[0].Rank, ShouldEqual, 1)

			top, err := svc.Ranking(ctx, "hk1", 1)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 1)
		})

		Convey("Then stats expose storage counters", func() {
			st := svc.GetStats()
			So(st["storedBatches"], ShouldEqual, 3)
			So(st["workerStored"], ShouldEqual, int64(3))
		})
	})
}

func TestService_ParticipantsMetricLabels(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with one configured and one stored validator", t, func() {
		svc := startService(service.WithValidators(map[string]string{"hk-named": "Named"}))
		defer func() { _ = svc.Stop(ctx) }()

		_, err := svc.Ingest(ctx, "api", "hk-stored", []model.BatchReport{
			batch(1, "uid_1", "uid_2", "1 -> 2", "2 -> 1"),
		})
		So(err, ShouldBeNil)
		waitStored(svc, 1)

		Convey("When aggregations are requested for arbitrary validator values", func() {
			random := make([]string, 0, 5)
			for i := 0; i < 5; i++ {
				v := "x-" + uuid.NewString()
				random = append(random, v)
				_, err := svc.Aggregate(ctx, v)
				So(err, ShouldBeNil)
			}
			for _, v := range []string{"", "hk-named", "hk-stored"} {
				_, err := svc.Aggregate(ctx, v)
				So(err, ShouldBeNil)
			}
			labels := participantLabels()

			Convey("Then unknown values share one series", func() {
				So(labels["other"], ShouldBeTrue)
				for _, v := range random {
					So(labels[v], ShouldBeFalse)
				}
			})

			Convey("Then known validators keep their own series", func() {
				So(labels["all"], ShouldBeTrue)
				So(labels["hk-named"], ShouldBeTrue)
				So(labels["hk-stored"], ShouldBeTrue)
			})
		})
	})
}

func TestService_Metadata(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with one configured validator", t, func() {
		svc := startService(service.WithValidators(map[string]string{"hk1": "First"}))
		defer func() { _ = svc.Stop(ctx) }()

		So(svc.PutMetadata(ctx, model.ValidatorReport{
			Hotkey: "hk2",
			Metadata: map[model.ParticipantID]model.ParticipantMeta{
				"7": {Tier: "gold", Score: 0.7},
				"3": {Tier: "gold", Score: 0.3},
			},
		}), ShouldBeNil)

		Convey("Then Validators lists configured and discovered hotkeys", func() {
			list, err := svc.Validators(ctx)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 2)
			So(list[0].Hotkey, ShouldEqual, "hk1")
			So(list[0].Name, ShouldEqual, "First")
			So(list[1].Hotkey, ShouldEqual, "hk2")
		})

		Convey("Then Tiers orders participants by suffix", func() {
			tr, err := svc.Tiers(ctx, "hk2")
			So(err, ShouldBeNil)
			So(len(tr.Tiers), ShouldEqual, 1)
			So(tr.Tiers[0].Scores[0].ParticipantID, ShouldEqual, model.ParticipantID("3"))
		})

		Convey("Then unknown validators have no tiers", func() {
			_, err := svc.Tiers(ctx, "hk9")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
