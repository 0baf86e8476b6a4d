package report

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roktrack/perception-node/models"
)

func TestSentinel(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	require.Equal(t, `[{"box_location":[0.0,0.0,0.0,0.0],"otype":"nothing","prob":1.0,"dist":0.0}]`, string(data))

	data, err = Marshal([]models.Detection{})
	require.NoError(t, err)
	require.Equal(t, `[{"box_location":[0.0,0.0,0.0,0.0],"otype":"nothing","prob":1.0,"dist":0.0}]`, string(data))
}

func TestMarshalDetections(t *testing.T) {
	dets := []models.Detection{
		{
			Box:        models.BoundingBox{X1: 270, Y1: 87.1875, X2: 370, Y2: 115.3125},
			Label:      "cone",
			Confidence: 0.8,
			Distance:   6.36,
		},
		{
			Box:        models.BoundingBox{X1: -1.5, Y1: 2, X2: 3, Y2: 4},
			Label:      "hen",
			Confidence: 0.5,
			Distance:   12,
		},
	}

	data, err := Marshal(dets)
	require.NoError(t, err)
	require.Equal(t, `[{"box_location":[270.0,87.1875,370.0,115.3125],"otype":"cone","prob":0.8,"dist":6.36},`+
		`{"box_location":[-1.5,2.0,3.0,4.0],"otype":"hen","prob":0.5,"dist":12.0}]`, string(data))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "cone", decoded[0]["otype"])
}

func TestMarshalRejectsNaN(t *testing.T) {
	_, err := Marshal([]models.Detection{{Label: "cone", Distance: math.NaN()}})
	require.Error(t, err)
}
