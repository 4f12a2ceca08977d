package harvest

import (
	"bytes"
	"context"
	"io"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/net/proxy"
)

type sftpLister struct {
	payload *domain.SFtpPayload
	ssh     *ssh.Client
	client  *sftp.Client
	logger  *zap.Logger
}

// sshAuth picks public key auth when a private key is configured, password auth otherwise.
// A configured public key must belong to the private key.
func sshAuth(p *domain.SFtpPayload) ([]ssh.AuthMethod, error) {
	if p.PrivateKey == "" {
		return []ssh.AuthMethod{ssh.Password(p.Password)}, nil
	}

	signer, err := ssh.ParsePrivateKey([]byte(p.PrivateKey))
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && p.Password != "" {
		// 加密的私钥使用 password 作为口令
		signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(p.PrivateKey), []byte(p.Password))
	}
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	if p.PublicKey != "" {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(p.PublicKey))
		if err != nil {
			return nil, errors.Wrap(err, "parse public key")
		}
		if !bytes.Equal(pub.Marshal(), signer.PublicKey().Marshal()) {
			return nil, errors.New("public key does not match private key")
		}
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "load known hosts %s", knownHostsFile)
	}
	return cb, nil
}

func dialSFTP(ctx context.Context, p *domain.SFtpPayload, dialer proxy.ContextDialer, knownHostsFile string, lg *zap.Logger) (*sftpLister, error) {
	port := p.Port
	if port == 0 {
		port = domain.DefaultSFtpPort
	}
	addr := net.JoinHostPort(p.Host, strconv.Itoa(port))

	auth, err := sshAuth(p)
	if err != nil {
		return nil, err
	}
	hostKeys, err := hostKeyCallback(knownHostsFile)
	if err != nil {
		return nil, err
	}

	lg.Info("connecting",
		zap.String("host", p.Host),
		zap.Int("port", port),
		zap.String("user", p.Username),
		zap.String("dir", p.Dir))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, transportErr(domain.ProtocolSFTP, "dial", addr, err)
	}
	// 握手阶段受 context 控制
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            p.Username,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         30 * time.Second,
	})
	stop()
	if err != nil {
		_ = conn.Close()
		return nil, transportErr(domain.ProtocolSFTP, "handshake", addr, err)
	}

	sshClient := ssh.NewClient(c, chans, reqs)
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, transportErr(domain.ProtocolSFTP, "session", addr, err)
	}
	return &sftpLister{payload: p, ssh: sshClient, client: client, logger: lg}, nil
}

func (l *sftpLister) dir() string {
	if l.payload.Dir == "" {
		return "."
	}
	return l.payload.Dir
}

func (l *sftpLister) List(ctx context.Context) ([]*RemoteFile, error) {
	start := time.Now()
	infos, err := l.client.ReadDir(l.dir())
	if err != nil {
		return nil, transportErr(domain.ProtocolSFTP, "list", l.dir(), err)
	}

	files := make([]*RemoteFile, 0, len(infos))
	for _, info := range infos {
		if !info.Mode().IsRegular() || info.Name() == "" {
			continue
		}
		remotePath := path.Join(l.dir(), info.Name())
		files = append(files, NewRemoteFile(info.Name(), info.Size(), info.ModTime(), func(ctx context.Context) (io.ReadCloser, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			f, err := l.client.Open(remotePath)
			if err != nil {
				return nil, transportErr(domain.ProtocolSFTP, "open", remotePath, err)
			}
			return &sftpBody{ctxReader: ctxReader{ctx: ctx, r: f}, file: f}, nil
		}))
	}
	l.logger.Info("listing done",
		zap.String("host", l.payload.Host),
		zap.String("dir", l.dir()),
		zap.Int("files", len(files)),
		zap.Duration(logger.FieldDuration, time.Since(start)))
	return files, nil
}

func (l *sftpLister) Close() error {
	err := l.client.Close()
	if cerr := l.ssh.Close(); err == nil {
		err = cerr
	}
	return err
}

type sftpBody struct {
	ctxReader
	file *sftp.File
}

func (b *sftpBody) Close() error {
	return b.file.Close()
}
