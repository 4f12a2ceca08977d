package code

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_WithDetailsDoesNotMutateRegistered(t *testing.T) {
	detailed := ErrorConfigNotFound.WithDetails("id 7")

	assert.False(t, ErrorConfigNotFound.HaveDetails())
	assert.True(t, detailed.HaveDetails())
	assert.Equal(t, []string{"id 7"}, detailed.Details())
	assert.Equal(t, http.StatusNotFound, detailed.StatusCode())
}

func TestCode_ErrorsIsMatchesCopies(t *testing.T) {
	err := fmt.Errorf("wrap: %w", ErrorAlreadyRunning.WithDetails("config 3"))

	assert.True(t, errors.Is(err, ErrorAlreadyRunning))
	assert.False(t, errors.Is(err, ErrorConfigNotFound))
}

func TestLang_Switch(t *testing.T) {
	defer SetGlobalDefaultLang(FALLBACK_LNG)

	assert.NoError(t, SetGlobalDefaultLang("zh_cn"))
	assert.Equal(t, "采集任务已在运行", ErrorAlreadyRunning.Msg())

	assert.Error(t, SetGlobalDefaultLang("fr"))
	assert.Equal(t, "Harvest is already running", ErrorAlreadyRunning.Msg())
}
