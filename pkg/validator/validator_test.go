package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type scheduleForm struct {
	Schedule  string `json:"schedule" binding:"required,cron"`
	Transfile string `json:"transfile" binding:"transfile"`
	Agency    string `json:"agency" binding:"agency"`
}

func TestCustomValidator(t *testing.T) {
	v := NewCustomValidator()

	assert.NoError(t, v.ValidateStruct(&scheduleForm{Schedule: "0 * * * *", Transfile: "b=databroendpr3,t=xml", Agency: "010100"}))
	assert.Error(t, v.ValidateStruct(&scheduleForm{Schedule: "0 * *", Transfile: "b=x", Agency: "010100"}))
	assert.Error(t, v.ValidateStruct(&scheduleForm{Schedule: "0 * * * *", Transfile: "b=x,f=file", Agency: "010100"}))
	assert.Error(t, v.ValidateStruct(&scheduleForm{Schedule: "0 * * * *", Transfile: "", Agency: "010100"}))
	assert.Error(t, v.ValidateStruct(&scheduleForm{Schedule: "0 * * * *", Transfile: "b=x", Agency: "abc"}))

	// 非结构体不校验
	assert.NoError(t, v.ValidateStruct("plain"))
}
