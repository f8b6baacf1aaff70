package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// FileMD5 md5 of a file's content as lowercase hex
func FileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func TimestampS() int64 {
	return time.Now().Unix()
}

func TimestampMS() int64 {
	return time.Now().UnixNano() / 1e6
}

// FileExists check file exist
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// PortCheck wait until the port accepts connections, timeout in milliseconds
func PortCheck(port string, timeout int) bool {
	if port == "" {
		return false
	}
	timeoutChan := time.After(time.Duration(timeout) * time.Millisecond)
	for {
		select {
		case <-timeoutChan:
			return false
		default:
			conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%s", port),
				time.Duration(10)*time.Millisecond)
			if err == nil && conn != nil {
				conn.Close()
				return true
			}
		}
	}
}
