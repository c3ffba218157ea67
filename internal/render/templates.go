package render

import "html/template"

var templates = template.Must(template.New("panels").Parse(`
{{define "answer"}}<div class="card mb-4" id="answer-panel"><div class="card-header bg-secondary text-white">Correct answer</div><div class="card-body">{{range $k, $v := .Variant.TrueAnswer}}<div><strong>{{$k}}</strong>: {{$v}}</div>{{end}}</div></div>{{end}}

{{define "submission"}}<div class="card mb-4" id="submission-{{.Submission.ID}}"><div class="card-header">Submission {{.Submission.ID}}{{if .Submission.GradedAt}} graded{{else}} waiting for grading{{end}}</div><div class="card-body">{{range $k, $v := .Submission.SubmittedAnswer}}<div><strong>{{$k}}</strong>: {{$v}}</div>{{end}}{{with .Submission.Feedback}}{{with index . "message"}}<pre class="feedback">{{.}}</pre>{{end}}{{end}}</div></div>{{end}}

{{define "questionScore"}}<div class="card mb-4" id="question-score-panel"><div class="card-header">Question {{.Question.QID}}</div><div class="card-body">{{if .ScorePct}}Score: {{.ScorePct}}%{{else}}Not yet graded{{end}}</div></div>{{end}}

{{define "assessmentScore"}}<div class="card mb-4" id="assessment-score-panel"><div class="card-body">{{if .ScorePct}}Latest score: {{.ScorePct}}%{{else}}Grading in progress{{end}}</div></div>{{end}}

{{define "footer"}}<form class="question-form" method="POST" action="{{.Req.URLPrefix}}/{{.Req.QuestionContext}}"><input type="hidden" name="__csrf_token" value="{{.Req.CSRFToken}}"><input type="hidden" name="__variant_id" value="{{.Variant.ID}}">{{if not .Variant.Broken}}<button class="btn btn-primary" name="__action" value="grade">Save &amp; Grade</button>{{end}}{{if .Req.AuthorizedEdit}}<a class="btn btn-link" href="{{.Req.URLPrefix}}/question/{{.Question.ID}}/settings">Edit question</a>{{end}}</form>{{end}}

{{define "navNext"}}<a id="question-nav-next" class="btn btn-primary" href="{{.Req.URLPrefix}}/instance_question/{{.Req.InstanceQuestionID}}/next">Next question</a>{{end}}
`))
