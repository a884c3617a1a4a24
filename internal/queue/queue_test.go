package queue

import "testing"

func media(title string) *Item {
	return NewMedia(MediaRef{Title: title, Path: "/media/" + title + ".mp3"})
}

func TestFIFOOrder(t *testing.T) {
	q := New()
	q.Append(media("e1"))
	q.Append(media("e2"))
	q.Append(media("e3"))

	for _, want := range []string{"e1", "e2", "e3"} {
		got := q.Pop()
		if got == nil || got.Media.Title != want {
			t.Fatalf("expected %s, got %+v", want, got)
		}
	}
	if q.Pop() != nil {
		t.Fatalf("expected empty queue")
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := New()
	q.Append(media("e1"))
	if q.Peek() == nil || q.Len() != 1 {
		t.Fatalf("peek must not remove")
	}
}

func TestPushFront(t *testing.T) {
	q := New()
	q.Append(media("e1"))
	q.PushFront(media("urgent"))
	if got := q.Pop(); got.Media.Title != "urgent" {
		t.Fatalf("expected urgent first, got %s", got.Media.Title)
	}
}

func TestInsertAnnouncementBefore(t *testing.T) {
	q := New()
	target := media("e2")
	q.Append(media("e1"))
	q.Append(target)

	ann := NewAnnouncement(AnnouncementRef{Text: "up next"})
	if !q.InsertAnnouncementBefore(target.ID, ann) {
		t.Fatalf("insert failed")
	}

	order := q.Snapshot()
	if len(order) != 3 {
		t.Fatalf("expected 3 items, got %d", len(order))
	}
	if order[1].Kind != KindAnnouncement {
		t.Fatalf("announcement not ahead of target")
	}
	if order[2].ID != target.ID {
		t.Fatalf("target displaced")
	}
}

func TestInsertAnnouncementDuplicateTargetRejected(t *testing.T) {
	q := New()
	target := media("e1")
	q.Append(target)

	if !q.InsertAnnouncementBefore(target.ID, NewAnnouncement(AnnouncementRef{Text: "a"})) {
		t.Fatalf("first insert failed")
	}
	if q.InsertAnnouncementBefore(target.ID, NewAnnouncement(AnnouncementRef{Text: "b"})) {
		t.Fatalf("second announcement for same transition must be rejected")
	}
}

func TestInsertAnnouncementMissingTarget(t *testing.T) {
	q := New()
	if q.InsertAnnouncementBefore("nope", NewAnnouncement(AnnouncementRef{})) {
		t.Fatalf("expected failure for missing target")
	}
}

func TestRemove(t *testing.T) {
	q := New()
	item := media("e1")
	q.Append(item)
	if !q.Remove(item.ID) {
		t.Fatalf("remove failed")
	}
	if q.Remove(item.ID) {
		t.Fatalf("double remove must fail")
	}
}

func TestDrain(t *testing.T) {
	q := New()
	q.Append(media("e1"))
	q.Append(media("e2"))
	items := q.Drain()
	if len(items) != 2 || q.Len() != 0 {
		t.Fatalf("drain mismatch: %d items, len %d", len(items), q.Len())
	}
}
