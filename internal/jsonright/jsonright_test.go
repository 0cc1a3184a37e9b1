package jsonright

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type peto struct {
	User string
}

type myModel struct {
	Name        string    `json:"name"`
	Profession1 string    `json:"profession1"`
	Birth       time.Time `json:"birth"`
	Password    string    `json:"password"`
}

type myModelSubclass struct {
	myModel
	Profession2 string `json:"profession2"`
}

type unregistered struct {
	ID int
}

func newModel() myModel {
	return myModel{
		Name:        "Nando Florestan",
		Profession1: "Python developer",
		Birth:       time.Date(1976, 7, 18, 0, 0, 0, 0, time.UTC),
		Password:    "Krystian Zimerman",
	}
}

func newRegistry() *Registry[*peto] {
	r := NewRegistry[*peto]()
	Register(r, func(obj myModel, _ *peto, features Features) (any, error) {
		if features.Has("MyModel unsafe") {
			return Entity2Dict(obj, "name", "password"), nil
		}
		return Entity2Dict(obj), nil
	})
	Register(r, func(obj *myModelSubclass, _ *peto, _ Features) (any, error) {
		d := Entity2Dict(obj)
		d["__class__"] = "MyModelSubclass"
		return d, nil
	})
	return r
}

func TestBuiltins(t *testing.T) {
	r := newRegistry()
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"string", "Adam Harasiewicz", "Adam Harasiewicz"},
		{"int", 42, 42},
		{"float", 3.1415, 3.1415},
		{"bool", false, false},
		{"nil", nil, nil},
		{"bytes", []byte("Chopin"), "Chopin"},
		{"decimal", decimal.RequireFromString("12.50"), 12.5},
		{"datetime", time.Date(2020, 9, 27, 4, 55, 42, 0, time.UTC), "2020-09-27T04:55:42"},
		{"map", map[string]any{"id": 1, "date": time.Date(2020, 9, 27, 0, 0, 0, 0, time.UTC)},
			map[string]any{"id": 1, "date": "2020-09-27T00:00:00"}},
		{"int keys", map[int]string{7: "seven"}, map[string]any{"7": "seven"}},
		{"slice of maps", []map[string]any{{"id": 1, "date": time.Date(2020, 9, 27, 0, 0, 0, 0, time.UTC)}},
			[]any{map[string]any{"id": 1, "date": "2020-09-27T00:00:00"}}},
		{"array", [2]int{1, 2}, []any{1, 2}},
		{"empty", []myModel{}, []any{}},
		{"nil slice", []string(nil), []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Encode(tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMyModel(t *testing.T) {
	r := newRegistry()

	got, err := r.Encode(newModel(), nil)
	require.NoError(t, err)
	right := got.(map[string]any)
	assert.Equal(t, "Nando Florestan", right["name"])
	assert.Equal(t, "Python developer", right["profession1"])
	assert.Equal(t, "1976-07-18T00:00:00", right["birth"])
	assert.NotContains(t, right, "password")

	m := newModel()
	got, err = r.Encode(&m, &peto{User: "nando"}, "MyModel unsafe")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Nando Florestan", "password": "Krystian Zimerman"}, got)
}

func TestMyModelSubclass(t *testing.T) {
	r := newRegistry()

	got, err := r.Encode(&myModelSubclass{myModel: newModel(), Profession2: "Classical music composer"}, nil)
	require.NoError(t, err)
	right := got.(map[string]any)
	assert.Equal(t, "Nando Florestan", right["name"])
	assert.Equal(t, "1976-07-18T00:00:00", right["birth"])
	assert.Equal(t, "Python developer", right["profession1"])
	assert.Equal(t, "Classical music composer", right["profession2"])
	assert.Equal(t, "MyModelSubclass", right["__class__"])
	assert.NotContains(t, right, "password")
}

func TestSequenceOfEntitiesIsPivoted(t *testing.T) {
	r := newRegistry()
	other := newModel()
	other.Name = "Krystian Zimerman"
	other.Profession1 = "Pianist"

	got, err := r.Encode([]myModel{newModel(), other}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{
		[]any{"birth", "1976-07-18T00:00:00", "1976-07-18T00:00:00"},
		[]any{"name", "Nando Florestan", "Krystian Zimerman"},
		[]any{"profession1", "Python developer", "Pianist"},
	}, got)
}

func TestNotImplemented(t *testing.T) {
	r := newRegistry()

	_, err := r.Encode(unregistered{ID: 1}, nil)
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = r.Encode([]unregistered{{ID: 1}}, nil)
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = r.Encode(map[string]any{"nested": unregistered{}}, nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestEntity2Dict(t *testing.T) {
	m := newModel()

	assert.Equal(t, map[string]any{
		"name":        "Nando Florestan",
		"profession1": "Python developer",
		"birth":       m.Birth,
	}, Entity2Dict(m))
	assert.Equal(t, map[string]any{"name": "Nando Florestan"}, Entity2Dict(&m, "name", "missing"))
}
