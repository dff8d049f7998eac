package protocol

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"cellarena/game"
)

func TestDecodeIntentJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Intent
	}{
		{"join", `{"type":"join","name":"alice"}`, Join{Name: "alice"}},
		{"join without name", `{"type":"join"}`, Join{}},
		{"move direction", `{"type":"playerMove","dx":0.5,"dy":-1}`, Move{DX: 0.5, DY: -1}},
		{"move zero direction", `{"type":"playerMove","dx":0,"dy":0}`, Move{}},
		{"move target", `{"type":"playerMove","x":120,"y":40}`, Target{X: 120, Y: 40}},
		{"nested data", `{"type":"playerMove","data":{"dx":1,"dy":0}}`, Move{DX: 1}},
		{"split", `{"type":"split"}`, Split{}},
		{"legacy score", `{"type":"score","name":"alice","score":99}`, Score{Score: 99}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeIntent(JSON, []byte(tc.in))
			if err != nil {
				t.Fatalf("DecodeIntent(%s): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("DecodeIntent(%s) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeIntentErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"empty", ``, ErrMalformed},
		{"not json", `{"type":`, ErrMalformed},
		{"missing type", `{"name":"x"}`, ErrMalformed},
		{"move without fields", `{"type":"playerMove","dx":1}`, ErrMalformed},
		{"wrong field type", `{"type":"playerMove","dx":"left","dy":0}`, ErrMalformed},
		{"unknown type", `{"type":"teleport","x":1,"y":2}`, ErrUnknownType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeIntent(JSON, []byte(tc.in))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeIntentMsgpack(t *testing.T) {
	b, err := msgpack.Marshal(map[string]any{"type": "playerMove", "dx": 1, "dy": 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeIntent(Msgpack, b)
	if err != nil {
		t.Fatalf("DecodeIntent: %v", err)
	}
	if got != (Move{DX: 1}) {
		t.Fatalf("got %#v, want Move{DX: 1}", got)
	}

	nan, _ := msgpack.Marshal(map[string]any{"type": "playerMove", "x": 1.0, "y": math.NaN()})
	if _, err := DecodeIntent(Msgpack, nan); !errors.Is(err, ErrMalformed) {
		t.Fatalf("NaN target err = %v, want ErrMalformed", err)
	}
}

func TestEncodeEnvelopeJSON(t *testing.T) {
	b, err := Encode(JSON, NewLeaderboard(nil))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := string(b); got != `{"type":"leaderboard","data":[]}` {
		t.Fatalf("empty leaderboard = %s", got)
	}

	b, err = Encode(JSON, NewPlayerDeath(game.Elimination{PlayerID: "p1", FinalScore: 37, EatenBy: "p2", Reason: game.ReasonEaten}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var env struct {
		Type string      `json:"type"`
		Data PlayerDeath `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypePlayerDeath || env.Data.PlayerID != "p1" || env.Data.FinalScore != 37 || env.Data.EatenBy != "p2" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestEncodeEnvelopeMsgpackUsesJSONNames(t *testing.T) {
	b, err := Encode(Msgpack, FoodUpdate{Foods: []FoodView{{ID: 7, X: 1, Y: 2, Size: 30, Color: "#FFB3BA"}}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var raw map[string]any
	if err := msgpack.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != TypeFoodUpdate {
		t.Fatalf("type = %v", raw["type"])
	}
	data, ok := raw["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %T", raw["data"])
	}
	if _, ok := data["foods"]; !ok {
		t.Fatalf("msgpack frame lacks the json field name: %v", data)
	}
}

func TestParamsInMilliseconds(t *testing.T) {
	s := game.DefaultSettings()
	s.SplitCooldown = 750 * time.Millisecond
	s.MergeDelay = 10 * time.Second
	p := ParamsFrom(s)
	if p.SplitCooldownMs != 750 || p.MergeDelayMs != 10000 {
		t.Fatalf("cooldown=%d merge=%d", p.SplitCooldownMs, p.MergeDelayMs)
	}
	if p.FieldWidth != s.FieldWidth || p.InitialSize != s.InitialSize {
		t.Fatalf("params %+v do not mirror settings", p)
	}
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]Codec{"": JSON, "json": JSON, "msgpack": Msgpack} {
		got, err := CodecByName(name)
		if err != nil || got != want {
			t.Fatalf("CodecByName(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := CodecByName("protobuf"); err == nil {
		t.Fatalf("expected an error for an unsupported codec")
	}
}

func TestNewPlayerUpdate(t *testing.T) {
	w, err := game.New(game.DefaultSettings(), game.WithoutInitialFood())
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	id := w.AddPlayer("alice")
	p, _ := w.Player(id)

	u := NewPlayerUpdate(w.Players())

	v, ok := u.Players[string(id)]
	if !ok {
		t.Fatalf("player %s missing from update", id)
	}
	if v.Name != "alice" || len(v.Cells) != 1 || v.Size != p.Cells[0].Size {
		t.Fatalf("unexpected view %+v", v)
	}
	if math.Abs(v.X-p.Cells[0].Pos.X) > 1e-9 || v.Cells[0].X != p.Cells[0].Pos.X {
		t.Fatalf("view position %v, cell at %v", v.X, p.Cells[0].Pos.X)
	}
}
