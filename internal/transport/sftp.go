package transport

import (
	"io"
	"os"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/pkg/sftp"
)

// SFTPFS implements core.FileSystem over an SFTP connection.
type SFTPFS struct {
	client *sftp.Client
}

var _ core.FileSystem = (*SFTPFS)(nil)

func NewSFTPFS(client *sftp.Client) *SFTPFS {
	return &SFTPFS{client: client}
}

func (fs *SFTPFS) Stat(name string) (os.FileInfo, error) {
	return fs.client.Stat(name)
}

func (fs *SFTPFS) MkdirAll(path string, perm os.FileMode) error {
	if err := fs.client.MkdirAll(path); err != nil {
		return err
	}
	return fs.client.Chmod(path, perm)
}

func (fs *SFTPFS) Remove(name string) error {
	return fs.client.Remove(name)
}

func (fs *SFTPFS) ReadFile(filename string) ([]byte, error) {
	f, err := fs.client.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (fs *SFTPFS) WriteFile(filename string, data []byte, perm os.FileMode) error {
	f, err := fs.client.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return fs.client.Chmod(filename, perm)
}

func (fs *SFTPFS) Close() error {
	return fs.client.Close()
}
