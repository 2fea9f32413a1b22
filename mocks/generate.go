package mocks

//go:generate mockgen -destination=./mock_price_provider.go -package=mocks trendcast-api/internal/services PriceProvider
//go:generate mockgen -destination=./mock_store.go -package=mocks trendcast-api/internal/services Store
//go:generate mockgen -destination=./mock_model.go -package=mocks trendcast-api/internal/forecast Model,Fitted
//go:generate mockgen -destination=./mock_recorder.go -package=mocks trendcast-api/internal/recorder Recorder
