package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// CustomNewRelicContextLogFormatter is a logrus.Formatter that forwards logs to
// New Relic, including every logrus.Entry field in the forwarded message.
// Entries carrying a context with a transaction are linked to it.
//
// Based off of: https://github.com/newrelic/go-agent/blob/f1942e10f0819e2c854d5d7289eb0dc1c52a00af/v3/integrations/logcontext-v2/nrlogrus/formatter.go
type CustomNewRelicContextLogFormatter struct {
	app       *newrelic.Application
	formatter logrus.Formatter
}

func NewCustomNewRelicLogFormatter(app *newrelic.Application, formatter logrus.Formatter) CustomNewRelicContextLogFormatter {
	return CustomNewRelicContextLogFormatter{
		app:       app,
		formatter: formatter,
	}
}

func (f CustomNewRelicContextLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	logData := newrelic.LogData{
		Severity: e.Level.String(),
		Message:  summarizeEntry(e),
	}

	logBytes, err := f.formatter.Format(e)
	if err != nil {
		return nil, err
	}
	b := bytes.NewBuffer(bytes.TrimRight(logBytes, "\n"))

	var txn *newrelic.Transaction
	if e.Context != nil {
		txn = newrelic.FromContext(e.Context)
	}

	if txn != nil {
		txn.RecordLog(logData)
		err = newrelic.EnrichLog(b, newrelic.FromTxn(txn))
	} else {
		f.app.RecordLog(logData)
		err = newrelic.EnrichLog(b, newrelic.FromApp(f.app))
	}
	if err != nil {
		return nil, err
	}

	b.WriteString("\n")
	return b.Bytes(), nil
}

// summarizeEntry flattens the message, error and remaining fields into a
// single line. Field keys are sorted.
func summarizeEntry(e *logrus.Entry) string {
	if len(e.Data) == 0 {
		return e.Message
	}

	errorString := "<nil>"
	keys := make([]string, 0, len(e.Data))
	for k, v := range e.Data {
		if k == logrus.ErrorKey {
			if typed, ok := v.(error); ok {
				errorString = fmt.Sprintf("%q", typed.Error())
			}
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data bytes.Buffer
	data.WriteByte('{')
	for i, k := range keys {
		encodedKey, _ := json.Marshal(k)
		encodedValue, err := json.Marshal(e.Data[k])
		if err != nil {
			encodedValue, _ = json.Marshal(fmt.Sprint(e.Data[k]))
		}

		if i > 0 {
			data.WriteByte(',')
		}
		data.Write(encodedKey)
		data.WriteByte(':')
		data.Write(encodedValue)
	}
	data.WriteByte('}')

	return fmt.Sprintf("message=%q, error=%s, data=%s", e.Message, errorString, data.String())
}
