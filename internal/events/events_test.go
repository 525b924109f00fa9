package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecipientsDropsEmptyAndDuplicates(t *testing.T) {
	assert.Equal(t, []string{"u1", "u2"}, recipients([]string{"u1", "", "u2", "u1"}))
	assert.Empty(t, recipients(nil))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Emit(context.Background(), Event{Topic: TopicOrderChanged, Type: EventOrderCreated, Recipients: []string{"c1", "o1"}})
	r.Emit(context.Background(), Event{Topic: TopicStockLow, Type: EventStockLow})

	got := r.Events()
	assert.Len(t, got, 2)
	assert.Equal(t, EventOrderCreated, got[0].Type)

	got[0].Type = "mutated"
	assert.Equal(t, EventOrderCreated, r.Events()[0].Type)
}
