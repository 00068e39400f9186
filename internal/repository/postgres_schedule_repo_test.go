package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
)

func newCachedSchedule(uid string, d time.Time, platform string) *model.CachedSchedule {
	return &model.CachedSchedule{
		Key:         model.CompositeKey(uid, d),
		TrainUID:    uid,
		ServiceDate: d,
		FetchedAt:   time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC),
		Schedule: model.ServiceSchedule{
			TrainUID: uid,
			RunDate:  d.Format(model.ISODateLayout),
			Stops: []model.Stop{
				{CRS: "KGX", Tiploc: "KNGX", Description: "London Kings Cross", BookedDeparture: "0930", Platform: platform},
			},
		},
	}
}

func TestPostgresScheduleRepo_PutOverwrites(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresScheduleRepo(db, 0)
	ctx := context.Background()

	d := date(2024, time.March, 10)
	if err := repo.Put(ctx, newCachedSchedule("G12345", d, "4")); err != nil {
		t.Fatalf("Put がエラーを返した: %v", err)
	}
	if err := repo.Put(ctx, newCachedSchedule("G12345", d, "5")); err != nil {
		t.Fatalf("2回目の Put がエラーを返した: %v", err)
	}

	got, err := repo.FindByKey(ctx, "G12345_2024-03-10")
	if err != nil {
		t.Fatalf("FindByKey がエラーを返した: %v", err)
	}
	if got == nil {
		t.Fatal("キャッシュが見つからない")
	}
	if got.Schedule.Stops[0].Platform != "5" {
		t.Errorf("Platform = %q, want %q（最後の書き込みが残るべき）", got.Schedule.Stops[0].Platform, "5")
	}
	if !got.ServiceDate.Equal(d) {
		t.Errorf("ServiceDate = %v, want %v", got.ServiceDate, d)
	}
}

func TestPostgresScheduleRepo_FindByKey_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresScheduleRepo(db, 0)

	got, err := repo.FindByKey(context.Background(), "G12345_2024-03-10")
	if err != nil {
		t.Fatalf("FindByKey がエラーを返した: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestPostgresScheduleRepo_DeleteServiceDateBefore(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresScheduleRepo(db, 1)
	ctx := context.Background()

	old := newCachedSchedule("G12345", date(2024, time.March, 7), "1")
	current := newCachedSchedule("G12345", date(2024, time.March, 10), "1")
	for _, s := range []*model.CachedSchedule{old, current} {
		if err := repo.Put(ctx, s); err != nil {
			t.Fatalf("Put がエラーを返した: %v", err)
		}
	}

	deleted, err := repo.DeleteServiceDateBefore(ctx, date(2024, time.March, 9))
	if err != nil {
		t.Fatalf("DeleteServiceDateBefore がエラーを返した: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if got, _ := repo.FindByKey(ctx, current.Key); got == nil {
		t.Error("cutoff以降のキャッシュは残るべき")
	}
}
