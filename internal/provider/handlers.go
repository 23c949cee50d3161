package provider

import (
	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	soap "github.com/merchantcapital/comcorp-idx-connector"
)

// Handler extracts the observability summary of one message type. Absent
// optional elements are not an error.
type Handler interface {
	Handle(msg *etree.Element) (Summary, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg *etree.Element) (Summary, error)

func (f HandlerFunc) Handle(msg *etree.Element) (Summary, error) {
	return f(msg)
}

// safeHandle runs h and converts a panic into an error.
func safeHandle(h Handler, msg *etree.Element) (s Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = errors.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(msg)
}

// DefaultHandlers returns the extraction handlers for the four known messages.
func DefaultHandlers(log logrus.FieldLogger) map[MessageType]Handler {
	return map[MessageType]Handler{
		MessageAvX:  &avxHandler{log: log},
		MessageFica: &ficaHandler{log: log},
		MessageIDX:  &idxHandler{log: log},
		MessageIVX:  &ivxHandler{log: log},
	}
}

func rawXML(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return "", errors.Wrapf(err, "serializing %s", el.Tag)
	}
	return s, nil
}

// logRaw records the serialized element under key, when present.
func logRaw(log logrus.FieldLogger, s Summary, el *etree.Element, key string) error {
	if el == nil {
		return nil
	}
	raw, err := rawXML(el)
	if err != nil {
		return err
	}
	s[key] = len(raw)
	log.WithField(key, raw).Infof("%s present", key)
	return nil
}

type avxHandler struct {
	log logrus.FieldLogger
}

func (h *avxHandler) Handle(msg *etree.Element) (Summary, error) {
	h.log.Info("Processing AvXProviderSubmitMessage")
	s := Summary{}

	if detail := soap.FindDescendant(msg, NSAvX, "AvxResponseDetail"); detail != nil {
		fields := map[string]string{}
		for _, c := range detail.ChildElements() {
			fields[c.Tag] = c.Text()
			h.log.Infof("  %s: %s", c.Tag, c.Text())
		}
		s["AvxResponseDetail"] = fields
	}
	if err := logRaw(h.log, s, soap.FindDescendant(msg, NSAvX, "SerializedAvxRespose"), "SerializedAvxRespose"); err != nil {
		return nil, err
	}
	return s, nil
}

type ficaHandler struct {
	log logrus.FieldLogger
}

func (h *ficaHandler) Handle(msg *etree.Element) (Summary, error) {
	h.log.Info("Processing FicaProviderSubmitMessage")
	s := Summary{}

	for _, name := range []string{"Data", "Documents", "SerializedData", "SerializedElements"} {
		if err := logRaw(h.log, s, soap.FindDescendant(msg, NSFica, name), name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type idxHandler struct {
	log logrus.FieldLogger
}

// StatementSummary describes one IDX StatementData block.
type StatementSummary struct {
	DateFrom     string
	DateTo       string
	Transactions int
}

func (h *idxHandler) Handle(msg *etree.Element) (Summary, error) {
	h.log.Info("Processing IDXProviderSubmitMessage")
	s := Summary{}

	for _, name := range []string{"AccountName", "AccountNumber", "AccountType"} {
		if el := soap.FindDescendant(msg, NSIDX, name); el != nil {
			s[name] = el.Text()
			h.log.Infof("%s: %s", name, el.Text())
		}
	}

	if data := soap.FindDescendant(msg, NSIDX, "Data"); data != nil {
		var statements []StatementSummary
		for _, sd := range soap.FindDescendants(data, NSIDX, "StatementData") {
			st := StatementSummary{}
			from := soap.FindDescendant(sd, NSIDX, "DateFrom")
			to := soap.FindDescendant(sd, NSIDX, "DateTo")
			if from != nil && to != nil {
				st.DateFrom, st.DateTo = from.Text(), to.Text()
				h.log.Infof("Statement period: %s to %s", st.DateFrom, st.DateTo)
			}
			if txs := soap.FindDescendant(sd, NSIDX, "Transactions"); txs != nil {
				st.Transactions = len(soap.FindDescendants(txs, NSIDX, "Transaction"))
				h.log.Infof("Found %d transactions", st.Transactions)
			}
			statements = append(statements, st)
		}
		s["Statements"] = statements
	}

	if images := soap.FindDescendant(msg, NSIDX, "Images"); images != nil {
		n := len(soap.FindDescendants(images, NSIDX, "StatementImage"))
		s["StatementImages"] = n
		h.log.Infof("Found %d statement images", n)
	}
	return s, nil
}

type ivxHandler struct {
	log logrus.FieldLogger
}

// PayslipSummary describes one IVX PayslipData block.
type PayslipSummary struct {
	TimeStamp string
	Fields    int
}

func (h *ivxHandler) Handle(msg *etree.Element) (Summary, error) {
	h.log.Info("Processing IVXProviderSubmitMessage")
	s := Summary{}

	if data := soap.FindDescendant(msg, NSIVX, "Data"); data != nil {
		var payslips []PayslipSummary
		for _, pd := range soap.FindDescendants(data, NSIVX, "PayslipData") {
			p := PayslipSummary{}
			if ts := soap.FindDescendant(pd, NSIVX, "TimeStamp"); ts != nil {
				p.TimeStamp = ts.Text()
				h.log.Infof("Payslip timestamp: %s", p.TimeStamp)
			}
			if fields := soap.FindDescendant(pd, NSCommon, "Fields"); fields != nil {
				p.Fields = len(soap.FindDescendants(fields, NSCommon, "KeyValuePair"))
				h.log.Infof("Found %d fields", p.Fields)
			}
			payslips = append(payslips, p)
		}
		s["Payslips"] = payslips
	}

	if images := soap.FindDescendant(msg, NSIVX, "Images"); images != nil {
		n := len(soap.FindDescendants(images, NSCommon, "Document"))
		s["Documents"] = n
		h.log.Infof("Found %d documents", n)
	}

	for _, name := range []string{"SerializedData", "SerializedImages"} {
		if err := logRaw(h.log, s, soap.FindDescendant(msg, NSIVX, name), name); err != nil {
			return nil, err
		}
	}
	return s, nil
}
