package export

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/errors"
)

// DefaultUploadTimeout bounds connection setup and login per upload.
const DefaultUploadTimeout = 30 * time.Second

// Uploader pushes one exported file into a remote directory.
// Implementations connect per call; a localization run uploads at most a
// handful of files.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, localPath string) error
}

// NewUploader selects the uploader for the configured protocol.
func NewUploader(settings conf.UploadSettings) (Uploader, error) {
	if settings.Host == "" {
		return nil, errors.Newf("upload host is required").
			Component("export").
			Category(errors.CategoryConfiguration).
			Build()
	}
	switch settings.Protocol {
	case "ftp":
		return &ftpUploader{config: settings, timeout: DefaultUploadTimeout}, nil
	case "sftp":
		return &sftpUploader{config: settings, timeout: DefaultUploadTimeout}, nil
	default:
		return nil, errors.Newf("unsupported upload protocol %q", settings.Protocol).
			Component("export").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// UploadAll pushes every path through the uploader, stopping at the first
// failure.
func UploadAll(ctx context.Context, uploader Uploader, paths []string) error {
	for _, p := range paths {
		if err := uploader.Upload(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

type ftpUploader struct {
	config  conf.UploadSettings
	timeout time.Duration
}

func (u *ftpUploader) Name() string { return "ftp" }

func (u *ftpUploader) Upload(ctx context.Context, localPath string) error {
	port := u.config.Port
	if port == 0 {
		port = 21
	}
	addr := net.JoinHostPort(u.config.Host, strconv.Itoa(port))

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(u.timeout))
	if err != nil {
		return uploadError("ftp", "dial "+addr, err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			logger.Debug("ftp quit failed", "error", err)
		}
	}()

	if u.config.Username != "" {
		if err := conn.Login(u.config.Username, u.config.Password); err != nil {
			return uploadError("ftp", "login", err)
		}
	}

	remoteDir := strings.TrimRight(u.config.Path, "/")
	if remoteDir != "" {
		if err := ensureFTPDir(conn, remoteDir); err != nil {
			return uploadError("ftp", "create directory "+remoteDir, err)
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return uploadError("ftp", "open "+localPath, err)
	}
	defer func() {
		_ = f.Close()
	}()

	remotePath := path.Join(remoteDir, filepath.Base(localPath))
	if err := conn.Stor(remotePath, f); err != nil {
		return uploadError("ftp", "store "+remotePath, err)
	}

	logger.Info("file uploaded",
		"protocol", "ftp",
		"host", u.config.Host,
		"remote_path", remotePath)
	return nil
}

// ensureFTPDir creates the remote directory when missing. The working
// directory is restored so later Stor calls resolve paths unchanged.
func ensureFTPDir(conn *ftp.ServerConn, dir string) error {
	cwd, err := conn.CurrentDir()
	if err != nil {
		return err
	}
	if err := conn.ChangeDir(dir); err == nil {
		return conn.ChangeDir(cwd)
	}
	if err := conn.MakeDir(dir); err != nil && !ftpDirExists(err) {
		return err
	}
	return nil
}

// ftpDirExists reports whether a MakeDir failure means the directory is
// already there. 550 is the common server response for that case.
func ftpDirExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "file exists") ||
		strings.Contains(msg, "550")
}

type sftpUploader struct {
	config  conf.UploadSettings
	timeout time.Duration
}

func (u *sftpUploader) Name() string { return "sftp" }

func (u *sftpUploader) Upload(ctx context.Context, localPath string) error {
	client, sshConn, err := u.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
		_ = sshConn.Close()
	}()

	remoteDir := strings.TrimRight(u.config.Path, "/")
	if remoteDir != "" {
		if err := client.MkdirAll(remoteDir); err != nil {
			return uploadError("sftp", "create directory "+remoteDir, err)
		}
	}

	src, err := os.Open(localPath)
	if err != nil {
		return uploadError("sftp", "open "+localPath, err)
	}
	defer func() {
		_ = src.Close()
	}()

	remotePath := path.Join(remoteDir, filepath.Base(localPath))
	dst, err := client.Create(remotePath)
	if err != nil {
		return uploadError("sftp", "create "+remotePath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return uploadError("sftp", "write "+remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return uploadError("sftp", "close "+remotePath, err)
	}

	logger.Info("file uploaded",
		"protocol", "sftp",
		"host", u.config.Host,
		"remote_path", remotePath)
	return nil
}

// connect opens the SSH session and an SFTP client over it. ssh.Dial has
// no context form, so the handshake runs in a goroutine the context can
// abandon.
func (u *sftpUploader) connect(ctx context.Context) (*sftp.Client, *ssh.Client, error) {
	auth, err := u.authMethods()
	if err != nil {
		return nil, nil, err
	}

	config := &ssh.ClientConfig{
		User:            u.config.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106 -- TODO: pin host keys via a known_hosts setting
		Timeout:         u.timeout,
	}

	port := u.config.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(u.config.Host, strconv.Itoa(port))

	type result struct {
		client *sftp.Client
		conn   *ssh.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		sshConn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			ch <- result{err: uploadError("sftp", "dial "+addr, err)}
			return
		}
		client, err := sftp.NewClient(sshConn)
		if err != nil {
			_ = sshConn.Close()
			ch <- result{err: uploadError("sftp", "open sftp session", err)}
			return
		}
		ch <- result{client: client, conn: sshConn}
	}()

	select {
	case <-ctx.Done():
		// Reap whatever the dial goroutine produces after abandonment.
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.client.Close()
				_ = r.conn.Close()
			}
		}()
		return nil, nil, ctx.Err()
	case r := <-ch:
		return r.client, r.conn, r.err
	}
}

func (u *sftpUploader) authMethods() ([]ssh.AuthMethod, error) {
	switch {
	case u.config.KeyFile != "":
		key, err := os.ReadFile(u.config.KeyFile)
		if err != nil {
			return nil, uploadError("sftp", "read private key", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, uploadError("sftp", "parse private key", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case u.config.Password != "":
		return []ssh.AuthMethod{ssh.Password(u.config.Password)}, nil
	default:
		return nil, errors.Newf("sftp upload needs a password or key file").
			Component("export").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func uploadError(protocol, op string, err error) error {
	return errors.New(fmt.Errorf("%s: %s: %w", protocol, op, err)).
		Component("export").
		Category(errors.CategoryNetwork).
		Build()
}
