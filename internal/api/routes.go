package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)
	s.router.GET("/ws", s.wsHandler.Serve)

	cameras := s.router.Group("/cameras")
	{
		cameras.GET("", s.cameraHandler.ListCameras)
		cameras.GET("/:id/mjpeg", s.cameraHandler.StreamMJPEG)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
