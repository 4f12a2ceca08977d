package harvest

import (
	"errors"
	"strings"
)

// TransfileTrailer 结束行
const TransfileTrailer = "slut"

var (
	ErrEmptyTransfile   = errors.New("transfile template is empty")
	ErrTransfileHasFile = errors.New("transfile template must not contain f=")
)

// ValidateTransfile checks a transfile template. The f= field is generated per file.
// ValidateTransfile 校验 transfile 模板：非空且不包含 f=
func ValidateTransfile(template string) error {
	if strings.TrimSpace(template) == "" {
		return ErrEmptyTransfile
	}
	if strings.Contains(template, "f=") {
		return ErrTransfileHasFile
	}
	return nil
}

// GenerateTransfile renders one "<template>,f=<file>" line per data file followed by the trailer.
func GenerateTransfile(template string, files []string) string {
	var sb strings.Builder
	for _, f := range files {
		sb.WriteString(template)
		sb.WriteString(",f=")
		sb.WriteString(f)
		sb.WriteByte('\n')
	}
	sb.WriteString(TransfileTrailer)
	return sb.String()
}

// TransfileName 数据文件对应的 transfile 名称
func TransfileName(uploadName, appID string) string {
	return uploadName + "." + appID + ".trans"
}

// ParseTransfile splits a template into its key=value fields (b, c, t, o, m ...).
// Fields without '=' are ignored.
func ParseTransfile(template string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.Split(template, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
