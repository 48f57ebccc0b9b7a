package handler

import (
	"github.com/dappierto/ramp-dummy-app-sub000/internal/logger"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/repository/memstore"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/service"
)

func newTestService() (*service.ApprovalPolicyService, *memstore.Store) {
	s := memstore.New()
	s.AddPerson(policy.Person{ID: "u-mgr", FirstName: "Alex", LastName: "Kim", Email: "alex@example.com"})
	s.AddPerson(policy.Person{ID: "u-own", FirstName: "Sam", LastName: "Lee", Email: "sam@example.com"})
	s.AddClient(policy.Client{ID: "c1", Name: "Acme", OwnerID: "u-own"})
	s.AddProject(policy.Project{ID: "p1", Name: "Website", ClientID: "c1", ManagerID: "u-mgr"})
	return service.NewApprovalPolicyService(s, s, s, s, nil, logger.Nop()), s
}
