package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wizard/pkg/domain"
)

func TestStateValue_Path(t *testing.T) {
	v := domain.ParseStateValue("active.select")
	assert.Equal(t, domain.StateValue{"active", "select"}, v)
	assert.Equal(t, "active.select", v.String())
	assert.Equal(t, "active", v.Root())
	assert.Equal(t, "select", v.Leaf())
	assert.Equal(t, domain.StateValue{"active"}, v.Parent())
	assert.True(t, domain.ParseStateValue("").IsZero())
}

func TestStateValue_Matches(t *testing.T) {
	v := domain.ParseStateValue("init.active.login")
	assert.True(t, v.Matches("init"))
	assert.True(t, v.Matches("init.active"))
	assert.True(t, v.Matches("init.active.login"))
	assert.False(t, v.Matches("active"))
	assert.False(t, v.Matches("init.act"))
	assert.False(t, v.Matches(""))
}

func TestStateValue_JSON(t *testing.T) {
	tests := []struct {
		name  string
		value domain.StateValue
		want  string
	}{
		{name: "leaf", value: domain.StateValue{"idle"}, want: `"idle"`},
		{name: "compound", value: domain.StateValue{"active", "select"}, want: `{"active":"select"}`},
		{name: "deep", value: domain.StateValue{"init", "active", "save"}, want: `{"init":{"active":"save"}}`},
		{name: "zero", value: nil, want: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back domain.StateValue
			require.NoError(t, json.Unmarshal(data, &back))
			assert.True(t, tt.value.Equal(back), "got %v", back)
		})
	}
}

func TestStateValue_UnmarshalDottedString(t *testing.T) {
	var v domain.StateValue
	require.NoError(t, json.Unmarshal([]byte(`"active.feature"`), &v))
	assert.Equal(t, "active.feature", v.String())
}

func TestStateValue_UnmarshalRejectsParallelValue(t *testing.T) {
	var v domain.StateValue
	err := json.Unmarshal([]byte(`{"a":"b","c":"d"}`), &v)
	assert.Error(t, err)
}
