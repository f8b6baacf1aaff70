package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var VCLogInstance = NewVCLog()

// VCLog forwards engine sidecar output to logrus, tagged with the job
// currently occupying the engine
type VCLog struct {
	mu       sync.RWMutex
	jobId    string
	LogFlow  chan string
	closeLog chan struct{}
}

func NewVCLog() *VCLog {
	vcLogInstance := &VCLog{
		LogFlow:  make(chan string, 8192),
		closeLog: make(chan struct{}),
	}
	go vcLogInstance.consumeLog()
	return vcLogInstance
}

func (s *VCLog) consumeLog() {
	for {
		select {
		case logStr := <-s.LogFlow:
			if jobId := s.getJobId(); jobId != "" {
				logrus.WithFields(logrus.Fields{
					"jobId": jobId,
				}).Info(logStr)
			} else {
				logrus.Info(logStr)
			}
		case <-s.closeLog:
			return
		}
	}
}

func (s *VCLog) getJobId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobId
}

func (s *VCLog) SetJobId(jobId string) {
	s.mu.Lock()
	s.jobId = jobId
	s.mu.Unlock()
}

func (s *VCLog) Close() {
	close(s.closeLog)
}
