package testutil

// AccountsBPMN is a two-task process whose task ids equal the operationIds of AccountsOpenAPI.
const AccountsBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Definitions_1">
  <bpmn:process id="Accounts" name="Accounts flow" isExecutable="true">
    <bpmn:startEvent id="Start"/>
    <bpmn:serviceTask id="GetAccount" name="Get account"/>
    <bpmn:serviceTask id="GetBalance" name="Get balance"/>
    <bpmn:endEvent id="End"/>
    <bpmn:sequenceFlow id="f1" sourceRef="Start" targetRef="GetAccount"/>
    <bpmn:sequenceFlow id="f2" sourceRef="GetAccount" targetRef="GetBalance"/>
    <bpmn:sequenceFlow id="f3" sourceRef="GetBalance" targetRef="End"/>
  </bpmn:process>
</bpmn:definitions>`

// AccountsOpenAPI declares the two operations AccountsBPMN maps onto.
const AccountsOpenAPI = `{
  "openapi": "3.0.3",
  "info": {"title": "Accounts", "version": "1.0"},
  "paths": {
    "/accounts/{id}": {
      "get": {
        "operationId": "GetAccount",
        "summary": "Get account",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}
        ],
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {"schema": {
              "type": "object",
              "properties": {"id": {"type": "string"}, "owner": {"type": "string"}}
            }}}
          }
        }
      }
    },
    "/accounts/{id}/balance": {
      "get": {
        "operationId": "GetBalance",
        "summary": "Get balance",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}
        ],
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {"schema": {
              "type": "object",
              "properties": {"amount": {"type": "number"}}
            }}}
          }
        }
      }
    }
  }
}`
