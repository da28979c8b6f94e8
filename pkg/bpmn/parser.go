// Package bpmn reads BPMN 2.0 XML into a models.ProcessModel of tasks and task-to-task flows.
package bpmn

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
)

// ErrInvalidDocument is returned when the input is not a BPMN definitions document.
var ErrInvalidDocument = errors.New("invalid BPMN document")

var endpointPattern = regexp.MustCompile(`(?i)\b(GET|POST|PUT|DELETE|PATCH)\s+(/[-\w{}./]*)`)

type definitions struct {
	XMLName   xml.Name  `xml:"definitions"`
	Processes []process `xml:"process"`
}

type process struct {
	ID    string   `xml:"id,attr"`
	Name  string   `xml:"name,attr"`
	Nodes []node   `xml:",any"`
	Flows []flowEl `xml:"sequenceFlow"`
}

type flowEl struct {
	ID        string `xml:"id,attr"`
	SourceRef string `xml:"sourceRef,attr"`
	TargetRef string `xml:"targetRef,attr"`
}

type node struct {
	XMLName       xml.Name
	ID            string     `xml:"id,attr"`
	Name          string     `xml:"name,attr"`
	Documentation []string   `xml:"documentation"`
	Extensions    *extension `xml:"extensionElements"`
}

type extension struct {
	Inner []anyElement `xml:",any"`
}

type anyElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Children []anyElement `xml:",any"`
}

var taskElements = map[string]bool{
	"task":             true,
	"serviceTask":      true,
	"userTask":         true,
	"sendTask":         true,
	"receiveTask":      true,
	"scriptTask":       true,
	"manualTask":       true,
	"businessRuleTask": true,
	"callActivity":     true,
}

// Parse decodes BPMN XML. Gateways and events are collapsed so that every
// sequence flow in the result connects two tasks.
func Parse(data []byte) (*models.ProcessModel, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	var defs definitions
	if err := xml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if len(defs.Processes) == 0 {
		return nil, fmt.Errorf("%w: no process element", ErrInvalidDocument)
	}

	model := &models.ProcessModel{
		Tasks:         []*models.ProcessTask{},
		SequenceFlows: []models.SequenceFlow{},
	}

	for _, p := range defs.Processes {
		if model.ID == "" || (len(model.Tasks) == 0 && hasTasks(p)) {
			model.ID = p.ID
			model.Name = p.Name
		}

		tasks, flows := flatten(p)
		model.Tasks = append(model.Tasks, tasks...)
		model.SequenceFlows = append(model.SequenceFlows, flows...)
	}

	return model, nil
}

func hasTasks(p process) bool {
	for _, n := range p.Nodes {
		if taskElements[n.XMLName.Local] {
			return true
		}
	}

	return false
}

func flatten(p process) ([]*models.ProcessTask, []models.SequenceFlow) {
	var tasks []*models.ProcessTask

	isTask := map[string]bool{}

	for _, n := range p.Nodes {
		if !taskElements[n.XMLName.Local] || n.ID == "" {
			continue
		}

		isTask[n.ID] = true
		tasks = append(tasks, toTask(n))
	}

	outgoing := map[string][]string{}
	for _, f := range p.Flows {
		outgoing[f.SourceRef] = append(outgoing[f.SourceRef], f.TargetRef)
	}

	var flows []models.SequenceFlow

	for _, t := range tasks {
		for _, target := range reachableTasks(t.ID, outgoing, isTask) {
			flows = append(flows, models.SequenceFlow{SourceID: t.ID, TargetID: target})
		}
	}

	return tasks, flows
}

// reachableTasks follows flows from id through non-task nodes and returns the first tasks reached.
func reachableTasks(id string, outgoing map[string][]string, isTask map[string]bool) []string {
	var out []string

	added := map[string]bool{}
	visited := map[string]bool{id: true}
	queue := append([]string(nil), outgoing[id]...)

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if isTask[next] {
			if !added[next] {
				added[next] = true
				out = append(out, next)
			}

			continue
		}

		if visited[next] {
			continue
		}

		visited[next] = true
		queue = append(queue, outgoing[next]...)
	}

	return out
}

func toTask(n node) *models.ProcessTask {
	task := &models.ProcessTask{
		ID:          n.ID,
		Name:        strings.TrimSpace(n.Name),
		Type:        n.XMLName.Local,
		Description: strings.TrimSpace(strings.Join(n.Documentation, "\n")),
	}

	if task.Name == "" {
		task.Name = n.ID
	}

	if n.Extensions != nil {
		props := map[string]string{}
		collectProperties(n.Extensions.Inner, props)

		if len(props) > 0 {
			task.CustomProperties = props
		}
	}

	task.APIEndpointInfo = endpointInfo(task)

	return task
}

func collectProperties(elements []anyElement, props map[string]string) {
	for _, el := range elements {
		if el.XMLName.Local == "property" {
			var name, value string

			for _, a := range el.Attrs {
				switch a.Name.Local {
				case "name":
					name = a.Value
				case "value":
					value = a.Value
				}
			}

			if name != "" {
				props[name] = value
			}
		}

		collectProperties(el.Children, props)
	}
}

// endpointInfo reads an explicit endpoint hint from task properties or documentation.
func endpointInfo(task *models.ProcessTask) *models.APIEndpointInfo {
	props := task.CustomProperties

	method := firstNonEmpty(props["api.method"], props["method"])
	path := firstNonEmpty(props["api.path"], props["path"])

	if method != "" && path != "" {
		return &models.APIEndpointInfo{
			Method:      strings.ToUpper(method),
			Path:        path,
			Description: props["api.description"],
		}
	}

	if m := endpointPattern.FindStringSubmatch(task.Description); m != nil {
		return &models.APIEndpointInfo{
			Method:      strings.ToUpper(m[1]),
			Path:        m[2],
			Description: props["api.description"],
		}
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
