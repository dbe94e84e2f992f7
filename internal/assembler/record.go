package assembler

import (
	"encoding/json"
	"fmt"

	"github.com/jwulff/pyroshow-go/internal/domain"
	"github.com/jwulff/pyroshow-go/internal/storage"
)

// PrepareRecord builds the record persisted for show: duration recomputed, version
// incremented and both payloads encoded. show itself is not modified.
//
// When the show cannot be scheduled the record is still returned and scheduleErr says
// why. The record then keeps the show's previous runtime payload and runtime version,
// so the pair stays consistent; CheckRuntime rejects it for loading. err is only set
// when the display payload cannot be encoded.
func PrepareRecord(show *domain.Show) (rec *storage.ShowRecord, scheduleErr error, err error) {
	display, err := Serialize(show.Items)
	if err != nil {
		return nil, nil, err
	}

	rec = &storage.ShowRecord{
		ID:                show.ID,
		Name:              show.Name,
		Duration:          RecomputeDuration(show.Items),
		Version:           show.Version + 1,
		RuntimeVersion:    show.RuntimeVersion,
		RuntimePayload:    string(show.RuntimePayload),
		DisplayPayload:    string(display),
		AuthorizationCode: show.AuthorizationCode,
		Protocol:          show.Protocol,
		AudioFile:         string(show.AudioFile),
		ReceiverLocations: string(show.ReceiverLocations),
		ReceiverLabels:    string(show.ReceiverLabels),
	}

	next := *show
	next.Version = rec.Version
	runtime, scheduleErr := EncodeRuntime(&next)
	if scheduleErr == nil {
		rec.RuntimePayload = string(runtime)
		rec.RuntimeVersion++
	}
	return rec, scheduleErr, nil
}

// FromRecord rebuilds a show from its persisted record. A display payload that cannot
// be decoded yields the show with no items together with the decode error, so the
// caller can still list it.
func FromRecord(rec *storage.ShowRecord) (*domain.Show, error) {
	show := &domain.Show{
		ID:                rec.ID,
		Name:              rec.Name,
		Duration:          rec.Duration,
		Version:           rec.Version,
		RuntimeVersion:    rec.RuntimeVersion,
		RuntimePayload:    rawJSON(rec.RuntimePayload),
		AuthorizationCode: rec.AuthorizationCode,
		Protocol:          rec.Protocol,
		AudioFile:         rawJSON(rec.AudioFile),
		ReceiverLocations: rawJSON(rec.ReceiverLocations),
		ReceiverLabels:    rawJSON(rec.ReceiverLabels),
	}

	items, err := Deserialize([]byte(rec.DisplayPayload))
	if err != nil {
		return show, fmt.Errorf("show %d: %w", rec.ID, err)
	}
	show.Items = items
	show.Duration = RecomputeDuration(items)
	return show, nil
}

func rawJSON(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}
