package domain

import "testing"

func TestHarvesterConfig_Normalize(t *testing.T) {
	c := &HarvesterConfig{
		Protocol: ProtocolSFTP,
		SFtp:     &SFtpPayload{Host: "sftp.example.org"},
		Http:     &HttpPayload{URL: "http://stale"},
	}
	c.Normalize()

	if c.Http != nil {
		t.Error("http payload should be dropped for an sftp config")
	}
	if c.SFtp.Port != DefaultSFtpPort {
		t.Errorf("port = %d, want %d", c.SFtp.Port, DefaultSFtpPort)
	}
	if !c.HasPayload() {
		t.Error("sftp payload expected")
	}

	h := &HarvesterConfig{Protocol: ProtocolHTTP, Http: &HttpPayload{URL: "http://x"}}
	h.Normalize()
	if h.Http.ListFilesHandler != ListFilesStandard {
		t.Errorf("listFilesHandler = %s", h.Http.ListFilesHandler)
	}
}

func TestHarvesterConfig_UploadName(t *testing.T) {
	ftpCfg := &HarvesterConfig{Protocol: ProtocolFTP, Agency: "010100"}
	if got := ftpCfg.UploadName("v46.i23.xml"); got != "010100.v46.i23.xml" {
		t.Errorf("ftp upload name = %s", got)
	}
	httpCfg := &HarvesterConfig{Protocol: ProtocolHTTP, Agency: "010100"}
	if got := httpCfg.UploadName("feed.xml"); got != "feed.xml" {
		t.Errorf("http upload name = %s", got)
	}
}

func TestParseProtocol(t *testing.T) {
	if p, ok := ParseProtocol("SFTP"); !ok || p != ProtocolSFTP {
		t.Errorf("ParseProtocol(SFTP) = %s, %v", p, ok)
	}
	if _, ok := ParseProtocol("gopher"); ok {
		t.Error("gopher is not a protocol")
	}
}
