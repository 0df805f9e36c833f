package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ms05probe/internal/devicemodel"
	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/modelcheck"
	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/resolve"
)

// Messages shared with the operator-facing report.
const (
	msgManagerNotFound     = "Manager not found in Root Block."
	msgManagerNotSingleton = "Manager MUST be a singleton."
	msgNotImplemented      = "Not Implemented"
	msgNoConstraints       = "No properties with ParameterConstraints in Device Model."
	msgNoneSelected        = "No properties with PropertyConstraints selected for testing."
	msgNoReference         = "No reference descriptors loaded."
)

// deviceModel is the graph every later check works on. graph is nil when
// the model could not be queried; failure then says why.
type deviceModel struct {
	graph   *devicemodel.Graph
	result  Result
	failure string
}

func (s *Suite) checkDeviceModel(ctx context.Context) deviceModel {
	t := NewTest("Query Device Model", "auto_device_model")

	if err := s.connect(ctx); err != nil {
		msg := fmt.Sprintf("Unable to connect to %s: %s", s.cfg.URL, ncp.Detail(err))
		return deviceModel{result: t.Fail(msg), failure: msg}
	}

	graph, err := devicemodel.NewBuilder(s.client, s.logger).BuildGraph(ctx)
	if err != nil {
		msg := queryFailure(err)
		s.logger.Warn("device model query failed", "error", err)
		return deviceModel{result: t.Fail(msg), failure: msg}
	}
	return deviceModel{graph: graph, result: t.Pass()}
}

// queryFailure renders every failed property read of a device model query.
func queryFailure(err error) string {
	var trail devicemodel.QueryErrors
	if errors.As(err, &trail) {
		parts := make([]string, len(trail))
		for i, qe := range trail {
			parts[i] = qe.Error()
		}
		return "Unable to query Device Model: " + strings.Join(parts, "; ")
	}
	return "Unable to query Device Model: " + ncp.Detail(err)
}

type managerCheck struct {
	test    Test
	classID model.ClassID
}

var (
	classManagerCheck = managerCheck{
		test:    NewTest("Class Manager is a singleton in the Root Block", "auto_class_manager"),
		classID: model.ClassNcClassManager,
	}
	deviceManagerCheck = managerCheck{
		test:    NewTest("Device Manager is a singleton in the Root Block", "auto_device_manager"),
		classID: model.ClassNcDeviceManager,
	}
)

func (s *Suite) checkManager(dm deviceModel, c managerCheck) Result {
	if dm.graph == nil {
		return c.test.Fail(dm.failure)
	}
	if _, err := dm.graph.Manager(c.classID); err != nil {
		return s.managerFailure(c.test, err)
	}
	return c.test.Pass()
}

func (s *Suite) managerFailure(t Test, err error) Result {
	link := s.specLink("Managers")
	switch {
	case errors.Is(err, devicemodel.ErrNotFound):
		return t.Fail(msgManagerNotFound, link)
	case errors.Is(err, devicemodel.ErrSingletonViolation):
		return t.Fail(msgManagerNotSingleton, link)
	default:
		return t.Fail(err.Error(), link)
	}
}

// classManager returns the class manager or the result t ends with.
func (s *Suite) classManager(dm deviceModel, t Test) (*devicemodel.ClassManager, error) {
	if dm.graph == nil {
		return nil, &Outcome{Result: t.Fail(dm.failure)}
	}
	cm, err := dm.graph.ClassManager()
	if err != nil {
		return nil, &Outcome{Result: s.managerFailure(t, err)}
	}
	return cm, nil
}

func (s *Suite) checkControlClasses(dm deviceModel) []Result {
	t := NewTest("Validate control class definitions", "auto_control_class_definitions")
	cm, err := s.classManager(dm, t)
	if err != nil {
		return []Result{resultOf(t, err)}
	}
	if s.cfg.Reference == nil {
		return []Result{t.Unclear(msgNoReference)}
	}
	return s.definitions(cm.ClassDescriptors, "NcClassDescriptor", s.cfg.Reference.Classes)
}

func (s *Suite) checkDatatypes(dm deviceModel) []Result {
	t := NewTest("Validate datatype definitions", "auto_datatype_definitions")
	cm, err := s.classManager(dm, t)
	if err != nil {
		return []Result{resultOf(t, err)}
	}
	if s.cfg.Reference == nil {
		return []Result{t.Unclear(msgNoReference)}
	}
	return s.definitions(cm.DatatypeDescriptors, "NcDatatypeDescriptor", s.cfg.Reference.Datatypes)
}

// definitions yields one result per reference key.
func (s *Suite) definitions(observed map[string]model.Descriptor, schemaName string, reference map[string]model.Descriptor) []Result {
	keyResults := modelcheck.ValidateModelDefinitions(s.validator, observed, s.cfg.Reference.Schemas[schemaName], reference)

	results := make([]Result, len(keyResults))
	for i, kr := range keyResults {
		t := NewTest("Validate "+kr.Key+" definition", "auto_"+kr.Key)
		switch {
		case kr.Err == nil:
			results[i] = t.Pass()
		case errors.Is(kr.Err, modelcheck.ErrNotImplemented):
			results[i] = t.Unclear(msgNotImplemented)
		default:
			results[i] = t.Fail(kr.Err.Error())
		}
	}
	return results
}

func (s *Suite) checkConstraints(ctx context.Context, dm deviceModel) Result {
	t := NewTest("Test all writable properties with constraints", "auto_constraints")
	cm, err := s.classManager(dm, t)
	if err != nil {
		return resultOf(t, err)
	}

	records, err := resolve.New(s.client, cm, s.logger).FindConstrainedProperties(ctx, dm.graph.Root)
	problems := errorList(err)
	if len(records) == 0 && len(problems) == 0 {
		return t.Unclear(msgNoConstraints)
	}

	selected := s.withoutExcluded(records)
	if s.cfg.Interactive && s.question != nil && len(selected) > 0 {
		selected = s.selectRecords(ctx, selected)
	}
	if len(selected) == 0 && len(problems) == 0 {
		return t.Unclear(msgNoneSelected)
	}

	report := s.prober.ProbeAll(ctx, selected)
	for _, v := range report.Violations {
		problems = append(problems, v.Error())
	}
	s.logger.Info("constraints probed",
		"found", len(records),
		"probed", report.Probed,
		"violations", len(report.Violations),
	)

	if len(problems) > 0 {
		return t.Fail(strings.Join(problems, "; "))
	}
	return t.Pass()
}

func (s *Suite) withoutExcluded(records []resolve.Record) []resolve.Record {
	if len(s.cfg.ExcludedRoles) == 0 {
		return records
	}
	var kept []resolve.Record
	for _, rec := range records {
		if slices.Contains(s.cfg.ExcludedRoles, rec.Role) {
			s.logger.Debug("excluding property", "role", rec.Role, "property", rec.Name)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// selectRecords asks the operator which properties may be altered. No
// answer selects nothing.
func (s *Suite) selectRecords(ctx context.Context, records []resolve.Record) []resolve.Record {
	choices := make([]Choice, len(records))
	for i, rec := range records {
		choices[i] = Choice{ID: fmt.Sprintf("answer_%d", i), Label: rec.Name}
	}

	ids, err := s.question.Ask(ctx, Prompt{
		Kind:    PromptMultiChoice,
		Text:    selectionQuestion,
		Choices: choices,
	})
	if err != nil {
		s.logger.Warn("property selection not answered", "error", err)
		return nil
	}

	var selected []resolve.Record
	for i, c := range choices {
		if slices.Contains(ids, c.ID) {
			selected = append(selected, records[i])
		}
	}
	return selected
}

// errorList flattens a joined error.
func errorList(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

const selectionQuestion = `
From this list of properties with parameter constraints carefully select
those that can be safely altered by this test.
`
