package bpmn

import (
	"testing"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paymentProcess = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                  xmlns:camunda="http://camunda.org/schema/1.0/bpmn"
                  id="Definitions_1">
  <bpmn:process id="Payment" name="Payment flow" isExecutable="true">
    <bpmn:startEvent id="Start" name="Start"/>
    <bpmn:serviceTask id="CreateConsent" name="Create consent">
      <bpmn:documentation>Create consent via POST /account-consents</bpmn:documentation>
    </bpmn:serviceTask>
    <bpmn:exclusiveGateway id="Gateway"/>
    <bpmn:userTask id="GetBalance" name="Get balance">
      <bpmn:extensionElements>
        <camunda:properties>
          <camunda:property name="api.endpoint" value="GET /accounts/{id}/balance"/>
        </camunda:properties>
      </bpmn:extensionElements>
    </bpmn:userTask>
    <bpmn:task id="Notify" name="Notify client"/>
    <bpmn:endEvent id="End"/>
    <bpmn:sequenceFlow id="f1" sourceRef="Start" targetRef="CreateConsent"/>
    <bpmn:sequenceFlow id="f2" sourceRef="CreateConsent" targetRef="Gateway"/>
    <bpmn:sequenceFlow id="f3" sourceRef="Gateway" targetRef="GetBalance"/>
    <bpmn:sequenceFlow id="f4" sourceRef="Gateway" targetRef="Notify"/>
    <bpmn:sequenceFlow id="f5" sourceRef="GetBalance" targetRef="End"/>
    <bpmn:sequenceFlow id="f6" sourceRef="Notify" targetRef="End"/>
  </bpmn:process>
</bpmn:definitions>`

func TestParse_Tasks(t *testing.T) {
	t.Parallel()

	model, err := Parse([]byte(paymentProcess))
	require.NoError(t, err)

	assert.Equal(t, "Payment", model.ID)
	assert.Equal(t, "Payment flow", model.Name)
	require.Len(t, model.Tasks, 3)

	consent := model.Tasks[0]
	assert.Equal(t, "CreateConsent", consent.ID)
	assert.Equal(t, "serviceTask", consent.Type)
	assert.Equal(t, "Create consent via POST /account-consents", consent.Description)
	require.NotNil(t, consent.APIEndpointInfo)
	assert.Equal(t, "POST", consent.APIEndpointInfo.Method)
	assert.Equal(t, "/account-consents", consent.APIEndpointInfo.Path)

	balance, ok := model.Task("GetBalance")
	require.True(t, ok)
	assert.Equal(t, "GET /accounts/{id}/balance", balance.CustomProperties["api.endpoint"])
	assert.Nil(t, balance.APIEndpointInfo)
}

func TestParse_CollapsesGatewaysAndEvents(t *testing.T) {
	t.Parallel()

	model, err := Parse([]byte(paymentProcess))
	require.NoError(t, err)

	assert.Equal(t, []models.SequenceFlow{
		{SourceID: "CreateConsent", TargetID: "GetBalance"},
		{SourceID: "CreateConsent", TargetID: "Notify"},
	}, model.SequenceFlows)
}

func TestParse_CycleThroughGateway(t *testing.T) {
	t.Parallel()

	doc := `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL">
  <process id="Loop">
    <task id="A" name="A"/>
    <task id="B" name="B"/>
    <exclusiveGateway id="G"/>
    <sequenceFlow id="1" sourceRef="A" targetRef="B"/>
    <sequenceFlow id="2" sourceRef="B" targetRef="G"/>
    <sequenceFlow id="3" sourceRef="G" targetRef="A"/>
    <sequenceFlow id="4" sourceRef="G" targetRef="G"/>
  </process>
</definitions>`

	model, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []models.SequenceFlow{
		{SourceID: "A", TargetID: "B"},
		{SourceID: "B", TargetID: "A"},
	}, model.SequenceFlows)
}

func TestParse_EndpointFromProperties(t *testing.T) {
	t.Parallel()

	doc := `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:zeebe="http://camunda.org/schema/zeebe/1.0">
  <process id="P">
    <serviceTask id="T" name="">
      <extensionElements>
        <zeebe:properties>
          <zeebe:property name="method" value="post"/>
          <zeebe:property name="path" value="/payments"/>
        </zeebe:properties>
      </extensionElements>
    </serviceTask>
  </process>
</definitions>`

	model, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, model.Tasks, 1)

	task := model.Tasks[0]
	assert.Equal(t, "T", task.Name, "name falls back to id")
	require.NotNil(t, task.APIEndpointInfo)
	assert.Equal(t, "POST", task.APIEndpointInfo.Method)
	assert.Equal(t, "/payments", task.APIEndpointInfo.Path)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	for name, doc := range map[string]string{
		"empty":      "",
		"not xml":    "{}",
		"no process": `<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL"/>`,
		"wrong root": `<html><body/></html>`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestParse_EmptyProcess(t *testing.T) {
	t.Parallel()

	model, err := Parse([]byte(`<definitions><process id="Empty"/></definitions>`))
	require.NoError(t, err)
	assert.Empty(t, model.Tasks)
	assert.Empty(t, model.SequenceFlows)
}
