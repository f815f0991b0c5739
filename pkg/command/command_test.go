package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		token  string
		want   Direction
		wantOK bool
	}{
		{"forward", DirectionForward, true},
		{"forwards", DirectionForward, true},
		{"go forward", DirectionForward, true},
		{"back", DirectionBackward, true},
		{"backward", DirectionBackward, true},
		{"backwards", DirectionBackward, true},
		{"go backward", DirectionBackward, true},
		{"left", DirectionLeft, true},
		{"go left", DirectionLeft, true},
		{"right", DirectionRight, true},
		{"go right", DirectionRight, true},
		{"stop", DirectionStop, true},
		{"brake", DirectionStop, true},
		{"  Forward ", DirectionNone, false},
		{"GO LEFT", DirectionNone, false},
		{"FORWARD", DirectionNone, false},
		{"stop ", DirectionNone, false},
		{"", DirectionNone, false},
		{"up", DirectionNone, false},
		{"go", DirectionNone, false},
		{"go forwards", DirectionNone, false},
		{"turn left", DirectionNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ParseDirection(tt.token)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseDirection(%q) = (%v, %v), want (%v, %v)", tt.token, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSynonymSetsAreDisjoint(t *testing.T) {
	seen := make(map[string]Direction)
	for _, dir := range Directions() {
		for _, tok := range dir.Synonyms() {
			if prev, dup := seen[tok]; dup {
				t.Errorf("token %q in both %v and %v", tok, prev, dir)
			}
			seen[tok] = dir
		}
	}
	assert.Len(t, seen, 13)
}

func TestSynonymsReturnsCopy(t *testing.T) {
	s := DirectionForward.Synonyms()
	s[0] = "sideways"
	got, ok := ParseDirection("forward")
	assert.True(t, ok)
	assert.Equal(t, DirectionForward, got)
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "forward", DirectionForward.String())
	assert.Equal(t, "stop", DirectionStop.String())
	assert.Equal(t, "none", DirectionNone.String())
}

func TestParseCondiment(t *testing.T) {
	tests := []struct {
		in     string
		want   Condiment
		wantOK bool
	}{
		{"salt", CondimentSalt, true},
		{"pepper", CondimentPepper, true},
		{"lemon", CondimentLemon, true},
		{"Pepper", Condiment("Pepper"), false},
		{" lemon ", Condiment(" lemon "), false},
		{"SALT", Condiment("SALT"), false},
		{"", CondimentNone, true},
		{"sugar", Condiment("sugar"), false},
	}
	for _, tt := range tests {
		got, ok := ParseCondiment(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseCondiment(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
	assert.Equal(t, []Condiment{CondimentLemon, CondimentPepper, CondimentSalt}, Condiments())
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Command
		wantErr error
		field   string
	}{
		{
			name:    "move",
			payload: `{"type":"move","direction":"forward","duration":2,"speed":50}`,
			want:    Command{Type: TypeMove, Direction: "forward", Duration: 2, Speed: 50},
		},
		{
			name:    "move with string numbers",
			payload: `{"type":"move","direction":"back","duration":"3","speed":" -40 "}`,
			want:    Command{Type: TypeMove, Direction: "back", Duration: 3, Speed: -40},
		},
		{
			name:    "fractional numbers truncate",
			payload: `{"type":"move","direction":"forward","duration":2.9,"speed":-10.5}`,
			want:    Command{Type: TypeMove, Direction: "forward", Duration: 2, Speed: -10},
		},
		{
			name:    "deliver",
			payload: `{"type":"deliver","direction":"forward","duration":0,"speed":0,"spice":"salt"}`,
			want:    Command{Type: TypeDeliver, Direction: "forward", Condiment: "salt"},
		},
		{
			name:    "extra keys ignored",
			payload: `{"type":"move","direction":"stop","duration":1,"speed":1,"spice":"salt","x":true}`,
			want:    Command{Type: TypeMove, Direction: "stop", Duration: 1, Speed: 1},
		},
		{
			name:    "non-string direction kept as text",
			payload: `{"type":"move","direction":7,"duration":1,"speed":1}`,
			want:    Command{Type: TypeMove, Direction: "7", Duration: 1, Speed: 1},
		},
		{
			name:    "missing type",
			payload: `{"direction":"forward","duration":2,"speed":50}`,
			wantErr: ErrMissingField,
			field:   KeyType,
		},
		{
			name:    "missing direction",
			payload: `{"type":"move","duration":2,"speed":50}`,
			wantErr: ErrMissingField,
			field:   KeyDirection,
		},
		{
			name:    "missing duration reported before speed",
			payload: `{"type":"move","direction":"forward"}`,
			wantErr: ErrMissingField,
			field:   KeyDuration,
		},
		{
			name:    "missing speed",
			payload: `{"type":"move","direction":"forward","duration":1}`,
			wantErr: ErrMissingField,
			field:   KeySpeed,
		},
		{
			name:    "deliver missing spice",
			payload: `{"type":"deliver","direction":"forward","duration":0,"speed":0}`,
			wantErr: ErrMissingField,
			field:   KeySpice,
		},
		{
			name:    "non-numeric duration",
			payload: `{"type":"move","direction":"forward","duration":"soon","speed":50}`,
			wantErr: ErrInvalidField,
		},
		{
			name:    "boolean speed",
			payload: `{"type":"move","direction":"forward","duration":1,"speed":true}`,
			wantErr: ErrInvalidField,
		},
		{
			name:    "unknown type",
			payload: `{"type":"dance"}`,
			wantErr: ErrUnknownType,
		},
		{
			name:    "not json",
			payload: `type=move`,
			wantErr: ErrMalformed,
		},
		{
			name:    "json array",
			payload: `[1,2]`,
			wantErr: ErrMalformed,
		},
		{
			name:    "json null",
			payload: `null`,
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload([]byte(tt.payload))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "error %v is not %v", err, tt.wantErr)
				if tt.field != "" {
					var mfe *MissingFieldError
					require.True(t, errors.As(err, &mfe))
					assert.Equal(t, tt.field, mfe.Field)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
