//go:build unit
// +build unit

package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAsset(t *testing.T) {
	integrals, err := GetAsset("minimal_h2.json")
	assert.Nil(t, err)
	assert.True(t, strings.Contains(integrals, `"num_orbitals": 2`))
	assert.True(t, strings.Contains(integrals, `"ecore": 0.713776`))
}

func TestGetAssetNotFound(t *testing.T) {
	_, err := GetAsset("no_such_file.json")
	assert.Error(t, err)
}

func TestPlainJsonString(t *testing.T) {
	jsonString := "{\n  \"name\": \"wako\",\n  \"qubits\"}"
	expected := "{\"name\":\"wako\",\"qubits\"}"

	actual := PlainJsonString(jsonString)
	assert.Equal(t, expected, actual)
}

func TestIsDirWritable(t *testing.T) {
	assert.Nil(t, IsDirWritable(t.TempDir()))
	assert.Error(t, IsDirWritable("/no/such/dir"))
}
