package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Bytes 计算内存数据的 SHA-256。
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Reader 读完 r 并返回 SHA-256 与读取的字节数。
func Reader(r io.Reader) (sum string, size int64, err error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// File 计算文件 SHA-256 和大小，数据集与报告文件的指纹都走这里。
func File(path string) (sum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return Reader(f)
}
