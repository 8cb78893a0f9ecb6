package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/duelboard/internal/adapters/repository"
	"github.com/okian/duelboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func report(validator string, ts float64) model.BatchReport {
	return model.BatchReport{
		Validator:     validator,
		Timestamp:     ts,
		UIDs:          map[string]model.ParticipantID{"0": "UID_1", "1": "UID_2"},
		RatingChanges: map[string]model.RawRatingChange{"0": "1 -> 2", "1": "2 -> 1"},
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with batches from two validators", t, func() {
		s := repository.NewMemoryStore()
		So(s.Append(ctx, report("hk1", 1), report("hk2", 2), report("hk1", 3)), ShouldBeNil)

		Convey("Then snapshots are scoped per validator", func() {
			all, err := s.Snapshot(ctx, "")
			So(err, ShouldBeNil)
			So(all.Reports, ShouldHaveLength, 3)

			hk1, err := s.Snapshot(ctx, "hk1")
			So(err, ShouldBeNil)
			So(hk1.Reports, ShouldHaveLength, 2)
			So(hk1.Validator, ShouldEqual, "hk1")
			So(s.Count(ctx), ShouldEqual, 3)
		})

		Convey("Then unknown validators give an empty snapshot", func() {
			snap, err := s.Snapshot(ctx, "nobody")
			So(err, ShouldBeNil)
			So(snap.Reports, ShouldBeEmpty)
			So(snap.Hash, ShouldEqual, uint64(0))
		})

		Convey("Then the hash changes only when that scope changes", func() {
			before1, _ := s.Snapshot(ctx, "hk1")
			before2, _ := s.Snapshot(ctx, "hk2")
			So(s.Append(ctx, report("hk2", 4)), ShouldBeNil)
			after1, _ := s.Snapshot(ctx, "hk1")
			after2, _ := s.Snapshot(ctx, "hk2")

			So(after1.Hash, ShouldEqual, before1.Hash)
			So(after2.Hash, ShouldNotEqual, before2.Hash)
		})

		Convey("Then earlier snapshots are not affected by later appends", func() {
			snap, _ := s.Snapshot(ctx, "")
			So(s.Append(ctx, report("hk1", 9)), ShouldBeNil)
			So(snap.Reports, ShouldHaveLength, 3)
		})

		Convey("Then validators are listed sorted", func() {
			So(s.PutMetadata(ctx, model.ValidatorReport{Hotkey: "hk0"}), ShouldBeNil)
			So(s.Validators(ctx), ShouldResemble, []string{"hk0", "hk1", "hk2"})
		})
	})

	Convey("Given metadata", t, func() {
		s := repository.NewMemoryStore()
		meta := model.ValidatorReport{
			Hotkey:   "hk",
			Metadata: map[model.ParticipantID]model.ParticipantMeta{"UID_1": {Tier: "research", Score: 1}},
		}
		So(s.PutMetadata(ctx, meta), ShouldBeNil)

		Convey("Then the latest report is returned", func() {
			got, err := s.Metadata(ctx, "hk")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, meta)
		})

		Convey("Then unknown hotkeys are not found", func() {
			_, err := s.Metadata(ctx, "other")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a bounded store", t, func() {
		s := repository.NewMemoryStore(repository.WithMaxReports(2))
		So(s.Append(ctx, report("a", 1), report("b", 2), report("a", 3)), ShouldBeNil)

		Convey("Then the oldest batches are dropped", func() {
			So(s.Count(ctx), ShouldEqual, 2)
			a, _ := s.Snapshot(ctx, "a")
			So(a.Reports, ShouldHaveLength, 1)
			So(a.Reports[0].Timestamp, ShouldEqual, 3.0)
		})
	})

	Convey("Given a closed store", t, func() {
		s := repository.NewMemoryStore()
		So(s.Close(), ShouldBeNil)

		Convey("Then writes fail", func() {
			So(errors.Is(s.Append(ctx, report("a", 1)), repository.ErrClosed), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		s := repository.NewMemoryStore()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		So(s.Append(cctx, report("a", 1)), ShouldNotBeNil)
	})

	Convey("Given concurrent writers", t, func() {
		s := repository.NewMemoryStore()
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_ = s.Append(ctx, report(fmt.Sprintf("hk%d", g), float64(i)))
					_, _ = s.Snapshot(ctx, "")
				}
			}(g)
		}
		wg.Wait()
		So(s.Count(ctx), ShouldEqual, 200)
	})
}

func TestCache(t *testing.T) {
	Convey("Given a cache with a controllable clock", t, func() {
		now := time.Unix(1000, 0)
		clock := func() time.Time { return now }
		c := repository.NewCache[string](repository.WithTTL(10*time.Second), repository.WithClock(clock), repository.WithMaxEntries(2))
		key := repository.CacheKey{Validator: "hk", Hash: 42}

		Convey("Then values are served while fresh", func() {
			c.Put(key, "result")
			v, ok := c.Get(key)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "result")
		})

		Convey("Then values expire after the ttl", func() {
			c.Put(key, "result")
			now = now.Add(10 * time.Second)
			_, ok := c.Get(key)
			So(ok, ShouldBeFalse)
			So(c.Len(), ShouldEqual, 0)
		})

		Convey("Then a different hash misses", func() {
			c.Put(key, "result")
			_, ok := c.Get(repository.CacheKey{Validator: "hk", Hash: 43})
			So(ok, ShouldBeFalse)
		})

		Convey("Then the cache stays bounded", func() {
			c.Put(repository.CacheKey{Hash: 1}, "a")
			now = now.Add(time.Second)
			c.Put(repository.CacheKey{Hash: 2}, "b")
			c.Put(repository.CacheKey{Hash: 3}, "c")
			So(c.Len(), ShouldEqual, 2)
			_, ok := c.Get(repository.CacheKey{Hash: 1})
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a disabled cache", t, func() {
		c := repository.NewCache[int](repository.WithTTL(0))
		c.Put(repository.CacheKey{}, 1)
		_, ok := c.Get(repository.CacheKey{})
		So(ok, ShouldBeFalse)
	})
}
