// Package mocks provides shared test doubles for the task service, the
// token service and notification sinks.
//
// Two styles live here. MockTaskService embeds testify's mock.Mock for
// tests that assert on calls:
//
//	svc := &mocks.MockTaskService{}
//	svc.On("Get", mock.Anything, int64(7)).Return(nil, service.ErrTaskNotFound)
//
// MockJWTService uses function fields with default return values, and
// RecordingSink keeps every message it receives:
//
//	sink := mocks.NewRecordingSink()
//	// ... run the processor ...
//	msg := sink.Wait(t, time.Second)
package mocks
