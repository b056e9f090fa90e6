package agents

import (
	"github.com/jmgress/smartrecover/internal/config"
	incidentconn "github.com/jmgress/smartrecover/internal/connectors/incident"
	kbconn "github.com/jmgress/smartrecover/internal/connectors/kb"
)

// Set holds all five constructed agents, keyed by kind.
type Set struct {
	IncidentManagement *IncidentManagement
	KnowledgeBase      *KnowledgeBase
	ChangeCorrelation  *ChangeCorrelation
	Logs               *Logs
	Events             *Events
}

// New builds the five agents from configuration, wiring each to the
// connector(s) it needs and the shared prompt provider.
func New(cfg config.AgentsConfig, incidentConn incidentconn.Connector, kbConn kbconn.Connector, prompts PromptProvider) *Set {
	return &Set{
		IncidentManagement: &IncidentManagement{
			Connector:       incidentConn,
			K:               cfg.SimilarIncidentsK,
			Threshold:       cfg.SimilarityThreshold,
			QualityMinChars: cfg.QualityMinChars,
			Prompts:         prompts,
		},
		KnowledgeBase: &KnowledgeBase{
			Connector: kbConn,
			K:         cfg.KnowledgeDocsK,
			Prompts:   prompts,
		},
		ChangeCorrelation: &ChangeCorrelation{
			Connector:    incidentConn,
			WindowBefore: cfg.ChangeWindowBefore,
			WindowAfter:  cfg.ChangeWindowAfter,
			TopMin:       cfg.TopSuspectThreshold,
			HighMin:      cfg.HighCorrelationMin,
			MediumMin:    cfg.MediumCorrelationMin,
			Prompts:      prompts,
		},
		Logs: &Logs{
			Connector: incidentConn,
			Prompts:   prompts,
		},
		Events: &Events{
			Connector: incidentConn,
			Prompts:   prompts,
		},
	}
}
